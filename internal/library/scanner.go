// Package library keeps the image index in step with the photo store.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/photostore"
	"golang.org/x/sync/singleflight"
)

// imageIndex is the subset of store.ImageStore the scanner writes to.
type imageIndex interface {
	Upsert(ctx context.Context, storageKey, displayName, mimeType string, size int64, modified time.Time) (*domain.Image, error)
	DeleteMissing(ctx context.Context, keep []string, cutoff time.Time) (int64, error)
}

// ScanResult summarises one pass over the photo store.
type ScanResult struct {
	Indexed int
	Removed int64
}

type Scanner struct {
	photos photostore.PhotoStore
	index  imageIndex
	logger *slog.Logger
	group  singleflight.Group
}

func NewScanner(photos photostore.PhotoStore, index imageIndex, logger *slog.Logger) *Scanner {
	return &Scanner{photos: photos, index: index, logger: logger}
}

// Scan indexes every image in the photo store and drops index rows whose
// files are gone. Calls that overlap a running scan share its result.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	v, err, shared := s.group.Do("scan", func() (interface{}, error) {
		return s.scan(ctx)
	})
	if shared {
		s.logger.Debug("joined running library scan")
	}
	res, _ := v.(ScanResult)
	return res, err
}

func (s *Scanner) scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	objects, err := s.photos.List(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to list photo store: %w", err)
	}

	keys := make([]string, 0, len(objects))
	var res ScanResult
	for _, obj := range objects {
		if _, err := s.index.Upsert(ctx, obj.Key, obj.Name, obj.MimeType, obj.Size, obj.ModifiedAt); err != nil {
			return res, fmt.Errorf("failed to index %q: %w", obj.Key, err)
		}
		keys = append(keys, obj.Key)
		res.Indexed++
	}

	// Rows written after the listing started belong to concurrent uploads
	// the listing may have missed.
	removed, err := s.index.DeleteMissing(ctx, keys, start)
	if err != nil {
		return res, fmt.Errorf("failed to prune index: %w", err)
	}
	res.Removed = removed

	s.logger.Info("library scan complete",
		"indexed", res.Indexed,
		"removed", res.Removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
