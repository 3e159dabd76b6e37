package channel

import (
	"fmt"
	"strings"
)

// Classifier turns the media fields of an IncomingMessage into AttachmentRefs.
type Classifier struct {
	mimes MimeResolver
}

// NewClassifier creates a Classifier that names files through mimes.
func NewClassifier(mimes MimeResolver) *Classifier {
	return &Classifier{mimes: mimes}
}

type kindRule func(c *Classifier, msg IncomingMessage) (*AttachmentRef, error)

// classifyOrder fixes the emission order of refs.
var classifyOrder = []struct {
	kind AttachmentKind
	rule kindRule
}{
	{KindPhoto, (*Classifier).classifyPhoto},
	{KindAudio, (*Classifier).classifyAudio},
	{KindFile, (*Classifier).classifyDocument},
	{KindSticker, (*Classifier).classifySticker},
	{KindVideo, (*Classifier).classifyVideo},
	{KindAnimation, (*Classifier).classifyAnimation},
}

// Classify evaluates every kind independently. A failing kind is left out
// of the refs and reported as a *ClassificationError.
func (c *Classifier) Classify(msg IncomingMessage) ([]AttachmentRef, []error) {
	var (
		refs []AttachmentRef
		errs []error
	)
	for _, item := range classifyOrder {
		ref, err := item.rule(c, msg)
		if err != nil {
			errs = append(errs, &ClassificationError{Kind: item.kind, Err: err})
			continue
		}
		if ref != nil {
			refs = append(refs, *ref)
		}
	}
	return refs, errs
}

// classifyPhoto keeps only the last, highest-resolution variant.
func (c *Classifier) classifyPhoto(msg IncomingMessage) (*AttachmentRef, error) {
	if len(msg.Photo) == 0 {
		return nil, nil
	}
	best := msg.Photo[len(msg.Photo)-1]
	return &AttachmentRef{
		Kind:     KindPhoto,
		FileID:   best.FileID,
		UniqueID: best.UniqueID,
		SizeHint: best.Size,
		FileName: best.UniqueID + ".jpg",
	}, nil
}

// classifyAudio ignores the platform file name; audio is always named by unique id.
func (c *Classifier) classifyAudio(msg IncomingMessage) (*AttachmentRef, error) {
	if msg.Audio == nil {
		return nil, nil
	}
	if strings.TrimSpace(msg.Audio.MimeType) == "" {
		return nil, fmt.Errorf("%w: audio has no mime type", ErrUnknownMimeType)
	}
	ext, err := c.resolve(msg.Audio.MimeType)
	if err != nil {
		return nil, err
	}
	return mediaRef(KindAudio, msg.Audio, msg.Audio.UniqueID+ext), nil
}

func (c *Classifier) classifyDocument(msg IncomingMessage) (*AttachmentRef, error) {
	return c.classifyNamed(KindFile, msg.Document)
}

func (c *Classifier) classifyVideo(msg IncomingMessage) (*AttachmentRef, error) {
	return c.classifyNamed(KindVideo, msg.Video)
}

func (c *Classifier) classifyAnimation(msg IncomingMessage) (*AttachmentRef, error) {
	return c.classifyNamed(KindAnimation, msg.Animation)
}

// classifyNamed prefers the platform file name and falls back to unique id plus extension.
func (c *Classifier) classifyNamed(kind AttachmentKind, file *MediaFile) (*AttachmentRef, error) {
	if file == nil {
		return nil, nil
	}
	if name := strings.TrimSpace(file.FileName); name != "" {
		return mediaRef(kind, file, name), nil
	}
	if strings.TrimSpace(file.MimeType) == "" {
		return nil, fmt.Errorf("%w: %s has neither file name nor mime type", ErrUnknownMimeType, kind)
	}
	ext, err := c.resolve(file.MimeType)
	if err != nil {
		return nil, err
	}
	return mediaRef(kind, file, file.UniqueID+ext), nil
}

func (c *Classifier) classifySticker(msg IncomingMessage) (*AttachmentRef, error) {
	s := msg.Sticker
	if s == nil {
		return nil, nil
	}
	var ext string
	switch {
	case s.IsAnimated:
		return nil, fmt.Errorf("%w: animated sticker", ErrUnsupportedAttachmentKind)
	case s.IsVideo:
		ext = ".webm"
	default:
		ext = ".png"
	}
	return &AttachmentRef{
		Kind:     KindSticker,
		FileID:   s.FileID,
		UniqueID: s.UniqueID,
		SizeHint: s.Size,
		FileName: s.UniqueID + ext,
	}, nil
}

func (c *Classifier) resolve(mimeType string) (string, error) {
	if c.mimes == nil {
		return "", fmt.Errorf("%w: no resolver configured", ErrUnknownMimeType)
	}
	return c.mimes.Resolve(mimeType)
}

func mediaRef(kind AttachmentKind, file *MediaFile, name string) *AttachmentRef {
	return &AttachmentRef{
		Kind:     kind,
		FileID:   file.FileID,
		UniqueID: file.UniqueID,
		SizeHint: file.Size,
		FileName: name,
	}
}
