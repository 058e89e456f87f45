// Package exiftool implements metadata.Codec on top of a long-running
// exiftool process.
package exiftool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	goexiftool "github.com/barasher/go-exiftool"
	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/metadata"
)

// exiftool names for the IFD0 and GPS fields that make up a TagSet.
const (
	fieldDateTime     = "ModifyDate"
	fieldMake         = "Make"
	fieldModel        = "Model"
	fieldLatitude     = "GPSLatitude"
	fieldLatitudeRef  = "GPSLatitudeRef"
	fieldLongitude    = "GPSLongitude"
	fieldLongitudeRef = "GPSLongitudeRef"
)

type Codec struct {
	mu     sync.Mutex
	et     *goexiftool.Exiftool
	tmpDir string
}

// NewCodec starts exiftool. binary may be empty to use the one on PATH.
func NewCodec(binary string) (*Codec, error) {
	opts := []func(*goexiftool.Exiftool) error{goexiftool.NoPrintConversion()}
	if binary != "" {
		opts = append(opts, goexiftool.SetExiftoolBinaryPath(binary))
	}
	et, err := goexiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start exiftool: %w", err)
	}
	return &Codec{et: et, tmpDir: os.TempDir()}, nil
}

func (c *Codec) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.et.Close()
}

// Read spools r to a temp file because exiftool only reads from paths.
func (c *Codec) Read(ctx context.Context, r io.Reader) (domain.TagSet, error) {
	if err := ctx.Err(); err != nil {
		return domain.TagSet{}, err
	}

	f, err := os.CreateTemp(c.tmpDir, "exifedit-read-*")
	if err != nil {
		return domain.TagSet{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(f.Name()); err != nil {
			slog.Error("failed to remove temp file", "path", f.Name(), "error", err)
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return domain.TagSet{}, fmt.Errorf("failed to spool image: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.TagSet{}, fmt.Errorf("failed to close temp file: %w", err)
	}

	c.mu.Lock()
	fms := c.et.ExtractMetadata(f.Name())
	c.mu.Unlock()

	if len(fms) != 1 {
		return domain.TagSet{}, fmt.Errorf("exiftool returned %d results", len(fms))
	}
	fm := fms[0]
	if fm.Err != nil {
		return domain.TagSet{}, fmt.Errorf("%w: %v", metadata.ErrNoMetadata, fm.Err)
	}

	return domain.TagSet{
		DateTime:  field(fm, fieldDateTime),
		Latitude:  signedField(fm, fieldLatitude, fieldLatitudeRef, "S"),
		Longitude: signedField(fm, fieldLongitude, fieldLongitudeRef, "W"),
		Make:      field(fm, fieldMake),
		Model:     field(fm, fieldModel),
	}, nil
}

func field(fm goexiftool.FileMetadata, key string) string {
	v, err := fm.GetString(key)
	if err != nil {
		return ""
	}
	return v
}

// signedField returns key in signed decimal degrees. exiftool reports the
// magnitude only and the hemisphere in refKey.
func signedField(fm goexiftool.FileMetadata, key, refKey, neg string) string {
	v := field(fm, key)
	if v == "" || strings.HasPrefix(v, "-") {
		return v
	}
	if strings.EqualFold(field(fm, refKey), neg) {
		return "-" + v
	}
	return v
}

func (c *Codec) Write(ctx context.Context, path string, tags domain.TagSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var current goexiftool.FileMetadata
	if fms := c.et.ExtractMetadata(path); len(fms) == 1 && fms[0].Err == nil {
		current = fms[0]
	}

	fm := goexiftool.EmptyFileMetadata()
	fm.File = path
	fm.SetString(fieldDateTime, tags.DateTime)
	fm.SetString(fieldMake, tags.Make)
	fm.SetString(fieldModel, tags.Model)
	lat := coordinateField{key: fieldLatitude, refKey: fieldLatitudeRef, limit: metadata.MaxLatitude, pos: "N", neg: "S"}
	if err := lat.set(&fm, tags.Latitude, field(current, fieldLatitudeRef)); err != nil {
		return fmt.Errorf("invalid latitude: %w", err)
	}
	long := coordinateField{key: fieldLongitude, refKey: fieldLongitudeRef, limit: metadata.MaxLongitude, pos: "E", neg: "W"}
	if err := long.set(&fm, tags.Longitude, field(current, fieldLongitudeRef)); err != nil {
		return fmt.Errorf("invalid longitude: %w", err)
	}

	batch := []goexiftool.FileMetadata{fm}
	c.et.WriteMetadata(batch)

	if err := batch[0].Err; err != nil {
		return fmt.Errorf("exiftool write failed: %w", err)
	}
	return nil
}

type coordinateField struct {
	key, refKey string
	limit       float64
	pos, neg    string
}

// set writes the magnitude of value in decimal degrees and the hemisphere
// letter to the reference tag. An unsigned rational triplet carries no
// hemisphere, so currentRef is kept unless it is missing.
func (f coordinateField) set(fm *goexiftool.FileMetadata, value, currentRef string) error {
	if value == "" {
		fm.SetString(f.key, "")
		fm.SetString(f.refKey, "")
		return nil
	}
	coord, err := metadata.ParseCoordinate(value, f.limit)
	if err != nil {
		return err
	}
	fm.SetString(f.key, strconv.FormatFloat(math.Abs(coord.Decimal()), 'f', -1, 64))

	switch {
	case coord.Negative:
		fm.SetString(f.refKey, f.neg)
	case !strings.Contains(value, "/") || currentRef == "":
		fm.SetString(f.refKey, f.pos)
	}
	return nil
}
