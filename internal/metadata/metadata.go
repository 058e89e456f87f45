// Package metadata defines the tag codec used to read and write the embedded
// metadata block of an image, plus helpers shared by the codec backends.
package metadata

import (
	"context"
	"errors"
	"io"

	"github.com/vbonduro/exifedit/internal/domain"
)

var (
	// ErrNoMetadata is returned by Read when the image carries no metadata block.
	ErrNoMetadata = errors.New("image has no metadata")
	// ErrUnsupportedFormat is returned when a backend cannot handle the file type.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Codec reads and writes the editable tags of an image.
type Codec interface {
	// Read decodes the tags from an image byte stream. Missing attributes are
	// returned as empty strings.
	Read(ctx context.Context, r io.Reader) (domain.TagSet, error)
	// Write replaces the tags of the image stored at path. An empty value
	// removes the attribute.
	Write(ctx context.Context, path string, tags domain.TagSet) error
}

// Closer is implemented by codecs that hold external resources.
type Closer interface {
	Close() error
}

// Close releases c if it holds resources.
func Close(c Codec) error {
	if cl, ok := c.(Closer); ok {
		return cl.Close()
	}
	return nil
}
