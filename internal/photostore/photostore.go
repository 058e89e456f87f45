package photostore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when no image is stored under a key.
var ErrNotFound = errors.New("photo not found")

// Object describes one stored image.
type Object struct {
	Key        string
	Name       string
	MimeType   string
	Size       int64
	ModifiedAt time.Time
}

type PhotoStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	// Get opens the stored bytes exactly as they are on disk.
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	// Path resolves storageKey to a file-system path.
	Path(ctx context.Context, storageKey string) (string, error)
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, storageKey string) error
}
