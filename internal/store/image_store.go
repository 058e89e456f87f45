package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vbonduro/exifedit/internal/domain"
)

// ImageStore is the index of images available in the library.
type ImageStore struct {
	db *sql.DB
}

func NewImageStore(db *sql.DB) *ImageStore {
	return &ImageStore{db: db}
}

const imageColumns = `id, storage_key, display_name, mime_type, size_bytes, modified_at, indexed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*domain.Image, error) {
	img := &domain.Image{}
	err := row.Scan(&img.ID, &img.StorageKey, &img.DisplayName, &img.MimeType, &img.SizeBytes, &img.ModifiedAt, &img.IndexedAt)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Upsert inserts an index row for storageKey or refreshes the existing one.
// indexed_at is stamped with the current time.
func (s *ImageStore) Upsert(ctx context.Context, storageKey, displayName, mimeType string, size int64, modified time.Time) (*domain.Image, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (storage_key, display_name, mime_type, size_bytes, modified_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(storage_key) DO UPDATE SET
			display_name = excluded.display_name,
			mime_type    = excluded.mime_type,
			size_bytes   = excluded.size_bytes,
			modified_at  = excluded.modified_at,
			indexed_at   = excluded.indexed_at
	`, storageKey, displayName, mimeType, size, modified.UTC(), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert image: %w", err)
	}

	return s.GetByStorageKey(ctx, storageKey)
}

func (s *ImageStore) GetByID(ctx context.Context, id domain.ImageID) (*domain.Image, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx, `
		SELECT `+imageColumns+` FROM images WHERE id = ?
	`, int64(id)))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return img, nil
}

func (s *ImageStore) GetByStorageKey(ctx context.Context, storageKey string) (*domain.Image, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx, `
		SELECT `+imageColumns+` FROM images WHERE storage_key = ?
	`, storageKey))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return img, nil
}

// List returns every indexed image, most recently modified first.
func (s *ImageStore) List(ctx context.Context) ([]*domain.Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+imageColumns+` FROM images ORDER BY modified_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

// ResolveKey returns the storage key of the first row matching id, or ""
// when there is none.
func (s *ImageStore) ResolveKey(ctx context.Context, id domain.ImageID) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `
		SELECT storage_key FROM images WHERE id = ? LIMIT 1
	`, int64(id)).Scan(&key)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve image: %w", err)
	}

	return key, nil
}

// DeleteMissing removes every row indexed before cutoff whose storage key is
// not in keep and returns the number of rows removed. Rows indexed at or
// after cutoff are left alone.
func (s *ImageStore) DeleteMissing(ctx context.Context, keep []string, cutoff time.Time) (int64, error) {
	wanted := make(map[string]bool, len(keep))
	for _, k := range keep {
		wanted[k] = true
	}

	rows, err := s.db.QueryContext(ctx, `SELECT storage_key FROM images WHERE indexed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to list storage keys: %w", err)
	}
	var stale []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan storage key: %w", err)
		}
		if !wanted[k] {
			stale = append(stale, k)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("error iterating storage keys: %w", err)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("failed to close rows: %w", err)
	}

	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var removed int64
	for _, k := range stale {
		result, err := tx.ExecContext(ctx, `DELETE FROM images WHERE storage_key = ?`, k)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to delete image %q: %w", k, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return removed, nil
}
