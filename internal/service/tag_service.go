package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/library"
	"github.com/vbonduro/exifedit/internal/metadata"
	"github.com/vbonduro/exifedit/internal/photostore"
	"github.com/vbonduro/exifedit/internal/tagform"
)

var (
	// ErrNotFound is returned when an image id is not in the index.
	ErrNotFound = errors.New("image not found")
	// ErrNoSelection is returned when an operation needs a current image
	// and none has been selected.
	ErrNoSelection = errors.New("no image selected")
	// ErrInvalidForm is returned when a save is attempted while any field
	// fails validation.
	ErrInvalidForm = errors.New("tag form is invalid")
)

// imageRepository is the subset of store.ImageStore that TagService requires.
type imageRepository interface {
	Upsert(ctx context.Context, storageKey, displayName, mimeType string, size int64, modified time.Time) (*domain.Image, error)
	GetByID(ctx context.Context, id domain.ImageID) (*domain.Image, error)
	List(ctx context.Context) ([]*domain.Image, error)
	ResolveKey(ctx context.Context, id domain.ImageID) (string, error)
}

type TagService struct {
	images  imageRepository
	photos  photostore.PhotoStore
	codec   metadata.Codec
	scanner *library.Scanner
	logger  *slog.Logger

	selMu    sync.RWMutex
	selected domain.ImageID

	writeMu sync.Mutex
}

func NewTagService(
	images imageRepository,
	photos photostore.PhotoStore,
	codec metadata.Codec,
	scanner *library.Scanner,
	logger *slog.Logger,
) *TagService {
	return &TagService{
		images:  images,
		photos:  photos,
		codec:   codec,
		scanner: scanner,
		logger:  logger,
	}
}

func (s *TagService) ListImages(ctx context.Context) ([]*domain.Image, error) {
	return s.images.List(ctx)
}

// GetImage returns ErrNotFound when id is not indexed.
func (s *TagService) GetImage(ctx context.Context, id domain.ImageID) (*domain.Image, error) {
	img, err := s.images.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if img == nil {
		return nil, ErrNotFound
	}
	return img, nil
}

// UploadImage stores data in the library and indexes it. The stored file is
// removed again if indexing fails.
func (s *TagService) UploadImage(ctx context.Context, filename, mimeType string, data []byte) (*domain.Image, error) {
	s.logger.Info("upload image started", "filename", filename, "mime_type", mimeType, "bytes", len(data))

	storageKey, err := s.photos.Save(ctx, uploadPrefix(filename), mimeType, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	modified := time.Now().UTC()
	if p, err := s.photos.Path(ctx, storageKey); err == nil {
		if info, err := os.Stat(p); err == nil {
			modified = info.ModTime().UTC()
		}
	}

	img, err := s.images.Upsert(ctx, storageKey, path.Base(storageKey), mimeType, int64(len(data)), modified)
	if err != nil {
		if derr := s.photos.Delete(ctx, storageKey); derr != nil {
			s.logger.Error("failed to roll back image file after index error", "storage_key", storageKey, "error", derr)
		}
		return nil, fmt.Errorf("failed to index image: %w", err)
	}

	s.logger.Info("upload image complete", "image_id", img.ID, "storage_key", storageKey)
	return img, nil
}

// uploadPrefix reduces an uploaded file name to a safe storage key prefix.
// The scanner names index rows after the stored file, so the original name
// survives only through this prefix.
func uploadPrefix(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
		if b.Len() >= 40 {
			break
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}

func (s *TagService) Rescan(ctx context.Context) (library.ScanResult, error) {
	if s.scanner == nil {
		return library.ScanResult{}, errors.New("library scanning is not configured")
	}
	return s.scanner.Scan(ctx)
}

// Select makes id the current image.
func (s *TagService) Select(ctx context.Context, id domain.ImageID) error {
	if _, err := s.GetImage(ctx, id); err != nil {
		return err
	}
	s.selMu.Lock()
	s.selected = id
	s.selMu.Unlock()
	s.logger.Debug("image selected", "image_id", id)
	return nil
}

// Current returns the selected image id, if any.
func (s *TagService) Current() (domain.ImageID, bool) {
	s.selMu.RLock()
	defer s.selMu.RUnlock()
	return s.selected, s.selected != 0
}

// ReadTags decodes the tags of image id. Any failure yields an empty
// TagSet; the cause is only logged.
func (s *TagService) ReadTags(ctx context.Context, id domain.ImageID) domain.TagSet {
	tags, err := s.readTags(ctx, id)
	if err != nil {
		s.logger.Warn("failed to read tags", "image_id", id, "error", err)
		return domain.TagSet{}
	}
	return tags
}

func (s *TagService) readTags(ctx context.Context, id domain.ImageID) (domain.TagSet, error) {
	key, err := s.images.ResolveKey(ctx, id)
	if err != nil {
		return domain.TagSet{}, err
	}
	if key == "" {
		return domain.TagSet{}, ErrNotFound
	}
	rc, _, err := s.photos.Get(ctx, key)
	if err != nil {
		return domain.TagSet{}, err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			s.logger.Error("failed to close image", "storage_key", key, "error", cerr)
		}
	}()
	return s.codec.Read(ctx, rc)
}

// EditForm returns a form seeded with the current image's tags.
func (s *TagService) EditForm(ctx context.Context) (domain.ImageID, *tagform.State, error) {
	id, ok := s.Current()
	if !ok {
		return 0, nil, ErrNoSelection
	}
	return id, tagform.New(s.ReadTags(ctx, id)), nil
}

// SaveTags writes the form's tags into image id. It reports false without
// writing when the image no longer resolves to a file.
func (s *TagService) SaveTags(ctx context.Context, id domain.ImageID, state *tagform.State) (bool, error) {
	if state == nil || !state.Valid() {
		return false, ErrInvalidForm
	}

	key, err := s.images.ResolveKey(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve image: %w", err)
	}
	if key == "" {
		s.logger.Warn("image has no path, skipping write", "image_id", id)
		return false, nil
	}
	path, err := s.photos.Path(ctx, key)
	if errors.Is(err, photostore.ErrNotFound) {
		s.logger.Warn("image file is missing, skipping write", "image_id", id, "storage_key", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve image path: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.codec.Write(ctx, path, state.Tags()); err != nil {
		return false, fmt.Errorf("failed to write tags: %w", err)
	}
	s.logger.Info("tags saved", "image_id", id, "storage_key", key)
	return true, nil
}

// OpenImage opens the stored bytes of image id for display.
func (s *TagService) OpenImage(ctx context.Context, id domain.ImageID) (io.ReadCloser, string, error) {
	key, err := s.images.ResolveKey(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve image: %w", err)
	}
	if key == "" {
		return nil, "", ErrNotFound
	}
	rc, mimeType, err := s.photos.Get(ctx, key)
	if errors.Is(err, photostore.ErrNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	return rc, mimeType, nil
}
