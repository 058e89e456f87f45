package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/exifedit/internal/db"
	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/library"
	"github.com/vbonduro/exifedit/internal/photostore/local"
	"github.com/vbonduro/exifedit/internal/store"
	"github.com/vbonduro/exifedit/internal/tagform"
)

// stubCodec is an in-memory metadata.Codec shared by every file.
type stubCodec struct {
	mu       sync.Mutex
	tags     domain.TagSet
	readErr  error
	writeErr error
	writes   []string
	written  domain.TagSet
}

func (c *stubCodec) Read(_ context.Context, r io.Reader) (domain.TagSet, error) {
	if _, err := io.ReadAll(r); err != nil {
		return domain.TagSet{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return domain.TagSet{}, c.readErr
	}
	return c.tags, nil
}

func (c *stubCodec) Write(_ context.Context, path string, tags domain.TagSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, path)
	c.written = tags
	c.tags = tags
	return nil
}

type testEnv struct {
	svc    *TagService
	codec  *stubCodec
	images *store.ImageStore
	root   string
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	root := t.TempDir()
	photos, err := local.NewLocalPhotoStore(root)
	require.NoError(t, err)

	images := store.NewImageStore(d)
	codec := &stubCodec{}
	scanner := library.NewScanner(photos, images, slog.Default())
	return &testEnv{
		svc:    NewTagService(images, photos, codec, scanner, slog.Default()),
		codec:  codec,
		images: images,
		root:   root,
	}
}

func (e *testEnv) addImage(t *testing.T, name string) *domain.Image {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.root, name), []byte("jpeg"), 0644))
	_, err := e.svc.Rescan(context.Background())
	require.NoError(t, err)
	img, err := e.images.GetByStorageKey(context.Background(), name)
	require.NoError(t, err)
	require.NotNil(t, img)
	return img
}

func validTags() domain.TagSet {
	return domain.TagSet{
		DateTime:  "2023:01:06 20:30:45",
		Latitude:  "41/1,24/1,3000/100",
		Longitude: "2/1,10/1,2600/100",
		Make:      "Canon",
		Model:     "EOS 5D",
	}
}

func TestTagServiceSelect(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, ok := env.svc.Current()
	assert.False(t, ok)

	img := env.addImage(t, "a.jpg")
	require.NoError(t, env.svc.Select(ctx, img.ID))

	id, ok := env.svc.Current()
	assert.True(t, ok)
	assert.Equal(t, img.ID, id)
}

func TestTagServiceSelectUnknownImage(t *testing.T) {
	env := newTestService(t)

	err := env.svc.Select(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := env.svc.Current()
	assert.False(t, ok)
}

func TestTagServiceReadTags(t *testing.T) {
	env := newTestService(t)
	img := env.addImage(t, "a.jpg")
	env.codec.tags = validTags()

	assert.Equal(t, validTags(), env.svc.ReadTags(context.Background(), img.ID))
}

func TestTagServiceReadTagsFailureIsSilent(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	img := env.addImage(t, "a.jpg")

	env.codec.readErr = errors.New("corrupt")
	assert.True(t, env.svc.ReadTags(ctx, img.ID).IsEmpty())

	env.codec.readErr = nil
	assert.True(t, env.svc.ReadTags(ctx, 12345).IsEmpty())

	require.NoError(t, os.Remove(filepath.Join(env.root, "a.jpg")))
	assert.True(t, env.svc.ReadTags(ctx, img.ID).IsEmpty())
}

func TestTagServiceEditFormRequiresSelection(t *testing.T) {
	env := newTestService(t)

	_, _, err := env.svc.EditForm(context.Background())
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestTagServiceEditForm(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	img := env.addImage(t, "a.jpg")
	env.codec.tags = validTags()
	require.NoError(t, env.svc.Select(ctx, img.ID))

	id, form, err := env.svc.EditForm(ctx)
	require.NoError(t, err)
	assert.Equal(t, img.ID, id)
	assert.Equal(t, validTags(), form.Tags())
	assert.True(t, form.Valid())
}

func TestTagServiceSaveTags(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	img := env.addImage(t, "a.jpg")

	saved, err := env.svc.SaveTags(ctx, img.ID, tagform.New(validTags()))
	require.NoError(t, err)
	assert.True(t, saved)
	require.Len(t, env.codec.writes, 1)
	assert.Equal(t, filepath.Join(env.root, "a.jpg"), env.codec.writes[0])
	assert.Equal(t, validTags(), env.codec.written)
}

func TestTagServiceSaveTagsInvalidFormSkipsWrite(t *testing.T) {
	env := newTestService(t)
	img := env.addImage(t, "a.jpg")

	form := tagform.New(validTags().With(domain.TagMake, "C"))
	saved, err := env.svc.SaveTags(context.Background(), img.ID, form)
	assert.ErrorIs(t, err, ErrInvalidForm)
	assert.False(t, saved)
	assert.Empty(t, env.codec.writes)
}

func TestTagServiceSaveTagsWithoutPathSkipsWrite(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	saved, err := env.svc.SaveTags(ctx, 999, tagform.New(validTags()))
	require.NoError(t, err)
	assert.False(t, saved)

	img := env.addImage(t, "a.jpg")
	require.NoError(t, os.Remove(filepath.Join(env.root, "a.jpg")))
	saved, err = env.svc.SaveTags(ctx, img.ID, tagform.New(validTags()))
	require.NoError(t, err)
	assert.False(t, saved)

	assert.Empty(t, env.codec.writes)
}

func TestTagServiceSaveTagsWriteError(t *testing.T) {
	env := newTestService(t)
	img := env.addImage(t, "a.jpg")
	env.codec.writeErr = errors.New("disk full")

	saved, err := env.svc.SaveTags(context.Background(), img.ID, tagform.New(validTags()))
	assert.Error(t, err)
	assert.False(t, saved)
}

func TestTagServiceUploadImage(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	img, err := env.svc.UploadImage(ctx, "Holiday Photo.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.NotZero(t, img.ID)
	assert.Contains(t, img.StorageKey, "Holiday_Photo_")
	assert.Equal(t, int64(len("jpeg-bytes")), img.SizeBytes)

	rc, mimeType, err := env.svc.OpenImage(ctx, img.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)
	assert.True(t, bytes.Equal([]byte("jpeg-bytes"), data))

	list, err := env.svc.ListImages(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTagServiceOpenImageNotFound(t *testing.T) {
	env := newTestService(t)

	_, _, err := env.svc.OpenImage(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo"},
		{"My Trip.jpeg", "My_Trip"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\IMG_01.JPG`, "IMG_01"},
		{"", "upload"},
		{"☃.png", "upload"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, uploadPrefix(tt.in))
		})
	}
}
