// Package native implements metadata.Codec in process: tags are decoded with
// goexif and written by re-encoding the Exif segment of a JPEG.
package native

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/metadata"
)

type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Read(ctx context.Context, r io.Reader) (domain.TagSet, error) {
	if err := ctx.Err(); err != nil {
		return domain.TagSet{}, err
	}

	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return domain.TagSet{}, fmt.Errorf("%w: %v", metadata.ErrNoMetadata, err)
	}

	return domain.TagSet{
		DateTime:  stringTag(x, exif.DateTime),
		Latitude:  rationalTag(x, exif.GPSLatitude),
		Longitude: rationalTag(x, exif.GPSLongitude),
		Make:      stringTag(x, exif.Make),
		Model:     stringTag(x, exif.Model),
	}, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.StringVal {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return s
}

func rationalTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal {
		return ""
	}
	vals := make([][2]int64, 0, tag.Count)
	for i := 0; i < int(tag.Count); i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return ""
		}
		vals = append(vals, [2]int64{num, den})
	}
	return metadata.FormatRationals(vals)
}

// Write rewrites the Exif segment of the JPEG at path in place. Tags outside
// the TagSet are carried over unchanged.
func (c *Codec) Write(ctx context.Context, path string, tags domain.TagSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if !isJPEG(data) {
		return fmt.Errorf("%s: %w", filepath.Base(path), metadata.ErrUnsupportedFormat)
	}

	segs, err := scanSegments(data)
	if err != nil {
		return fmt.Errorf("failed to parse image: %w", err)
	}

	tree := newTIFF()
	if s, ok := findExif(data, segs); ok {
		tree, err = decodeTIFF(s.payload(data)[len(exifHeader):])
		if err != nil {
			return fmt.Errorf("failed to decode exif: %w", err)
		}
	}

	if err := applyTags(tree, tags); err != nil {
		return err
	}

	out, err := spliceExif(data, segs, tree.encode())
	if err != nil {
		return err
	}
	return commit(path, out)
}

func applyTags(t *tiffTree, tags domain.TagSet) error {
	setASCII(t.root, tagDateTime, tags.DateTime)
	setASCII(t.root, tagMake, tags.Make)
	setASCII(t.root, tagModel, tags.Model)

	gps := t.root.child(tagGPSIFD, tags.Latitude != "" || tags.Longitude != "")
	if gps == nil {
		return nil
	}
	if _, ok := gps.get(tagGPSVersionID); !ok {
		gps.set(entry{tag: tagGPSVersionID, typ: typeByte, count: 4, value: []byte{2, 3, 0, 0}})
	}
	if err := setCoordinate(t, gps, tagGPSLatitude, tagGPSLatitudeRef, tags.Latitude, metadata.MaxLatitude, "N", "S"); err != nil {
		return fmt.Errorf("invalid latitude: %w", err)
	}
	if err := setCoordinate(t, gps, tagGPSLongitude, tagGPSLongitudeRef, tags.Longitude, metadata.MaxLongitude, "E", "W"); err != nil {
		return fmt.Errorf("invalid longitude: %w", err)
	}
	return nil
}

func setASCII(d *ifd, tag uint16, value string) {
	if value == "" {
		d.remove(tag)
		return
	}
	d.set(asciiEntry(tag, value))
}

// setCoordinate stores value as three rationals. The hemisphere reference is
// written when value is signed decimal, or when no reference exists yet.
func setCoordinate(t *tiffTree, gps *ifd, tag, refTag uint16, value string, limit float64, pos, neg string) error {
	if value == "" {
		gps.remove(tag)
		gps.remove(refTag)
		return nil
	}
	c, err := metadata.ParseCoordinate(value, limit)
	if err != nil {
		return err
	}
	gps.set(t.rationalEntry(tag, c.DMS[:]))

	_, hasRef := gps.get(refTag)
	switch {
	case c.Negative:
		gps.set(asciiEntry(refTag, neg))
	case isDecimal(value) || !hasRef:
		gps.set(asciiEntry(refTag, pos))
	}
	return nil
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r == '/' {
			return false
		}
	}
	return true
}

// commit replaces path with data via a temp file in the same directory.
func commit(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat image: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".exifedit-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	cleanup := func() {
		if rerr := os.Remove(tmp); rerr != nil && !os.IsNotExist(rerr) {
			slog.Error("failed to remove temp file", "path", tmp, "error", rerr)
		}
	}

	if _, err := f.Write(data); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close temp file after write error", "error", cerr)
		}
		cleanup()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("failed to sync image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		cleanup()
		return fmt.Errorf("failed to set image mode: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace image: %w", err)
	}
	return nil
}
