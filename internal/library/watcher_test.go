package library

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRescansOnNewImage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher test in short mode")
	}

	scanner, images, root := newTestScanner(t)
	w := NewWatcher(root, scanner, 50*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	// Give the watcher time to register the root before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "new.jpg"), []byte("n"), 0644))

	assert.Eventually(t, func() bool {
		img, err := images.GetByStorageKey(context.Background(), "sub/new.jpg")
		return err == nil && img != nil
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcherMissingRoot(t *testing.T) {
	scanner, _, root := newTestScanner(t)
	w := NewWatcher(filepath.Join(root, "missing"), scanner, 0, slog.Default())

	err := w.Run(context.Background())
	assert.Error(t, err)
}
