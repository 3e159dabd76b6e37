package media

import (
	"bytes"
	"fmt"
	"io"
)

const (
	// MaxAssetBytes is the global max accepted payload size.
	MaxAssetBytes int64 = 200 * 1024 * 1024
)

// ReadAllWithHint reads from reader and rejects payloads larger than maxBytes.
// The destination buffer is pre-sized to sizeHint; zero or hints larger than
// maxBytes leave it unsized.
func ReadAllWithHint(reader io.Reader, maxBytes, sizeHint int64) ([]byte, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be greater than 0")
	}
	limited := &io.LimitedReader{
		R: reader,
		N: maxBytes + 1,
	}
	var buf bytes.Buffer
	if sizeHint > 0 && sizeHint <= maxBytes {
		buf.Grow(int(sizeHint))
	}
	if _, err := buf.ReadFrom(limited); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, maxBytes)
	}
	return buf.Bytes(), nil
}
