package channel

import (
	"errors"
	"fmt"

	"github.com/memohai/tgmirror/internal/media"
)

var (
	// ErrUnknownMimeType indicates an attachment's MIME type could not be mapped to an extension.
	ErrUnknownMimeType = media.ErrUnknownMimeType
	// ErrUnsupportedAttachmentKind indicates a media variant that is deliberately not mirrored.
	ErrUnsupportedAttachmentKind = errors.New("unsupported attachment kind")

	// ErrFileNotFound indicates the platform no longer knows the file id.
	ErrFileNotFound = errors.New("file not found")
	// ErrNetworkFailure indicates a file download failed in transit.
	ErrNetworkFailure = errors.New("network failure")
	// ErrAlreadyConsumed is returned by Take after the bytes were handed out once.
	ErrAlreadyConsumed = errors.New("attachment already consumed")

	// ErrEndpointUnreachable indicates the endpoint could not be reached.
	ErrEndpointUnreachable = errors.New("endpoint unreachable")
	// ErrEndpointRejected indicates the endpoint refused the payload.
	ErrEndpointRejected = errors.New("endpoint rejected payload")

	// ErrQueueFull is returned when the inbound queue cannot accept more work.
	ErrQueueFull = errors.New("inbound queue full")
	// ErrStopNotSupported is returned when a connection does not support graceful shutdown.
	ErrStopNotSupported = errors.New("channel connection stop not supported")
)

// ClassificationError records why one attachment kind of a message was skipped.
type ClassificationError struct {
	Kind AttachmentKind
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.Kind, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// FetchError records why one attachment's bytes could not be retrieved.
type FetchError struct {
	Ref AttachmentRef
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %q: %v", e.Ref.Kind, e.Ref.FileName, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DispatchError records a failed send to one endpoint.
type DispatchError struct {
	Endpoint DestinationEndpoint
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s: %v", e.Endpoint.Redacted(), e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// normalizeFetchErr makes sure err matches one of the fetch sentinels.
func normalizeFetchErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrNetworkFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetworkFailure, err)
}

// normalizeSendErr makes sure err matches one of the dispatch sentinels.
func normalizeSendErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEndpointRejected) || errors.Is(err, ErrEndpointUnreachable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEndpointUnreachable, err)
}
