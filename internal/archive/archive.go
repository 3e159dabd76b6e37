// Package archive keeps a local copy of every mirrored attachment.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/media"
)

// Archiver writes attachments to a StorageProvider under
// <channel_id>/<message_id>/<filename>.
type Archiver struct {
	provider media.StorageProvider
	logger   *slog.Logger
}

// New creates an Archiver.
func New(log *slog.Logger, provider media.StorageProvider) *Archiver {
	if log == nil {
		log = slog.Default()
	}
	return &Archiver{
		provider: provider,
		logger:   log.With(slog.String("component", "archive")),
	}
}

// Key returns the storage key of one attachment.
func Key(channelID channel.ChannelID, messageID int, name string) string {
	return path.Join(channelID.String(), strconv.Itoa(messageID), safeName(name))
}

// Archive stores every file. It attempts all files and joins the failures.
func (a *Archiver) Archive(ctx context.Context, channelID channel.ChannelID, messageID int, files []channel.OutboundFile) error {
	var errs []error
	for _, f := range files {
		key := Key(channelID, messageID, f.Name)
		if err := a.provider.Put(ctx, key, bytes.NewReader(f.Data)); err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", key, err))
			continue
		}
		a.logger.Debug("attachment archived", slog.String("key", key), slog.Int("bytes", len(f.Data)))
	}
	return errors.Join(errs...)
}

// safeName keeps only the final path element of a platform-supplied name.
func safeName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "attachment"
	}
	return name
}
