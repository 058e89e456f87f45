package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.ListenAddr)
	assert.NotEmpty(t, cfg.DBPath)
	assert.NotEmpty(t, cfg.PhotoPath)
	assert.Equal(t, BackendNative, cfg.MetadataBackend)
	assert.True(t, cfg.WatchLibrary)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DB_PATH", "/custom/db.sqlite")
	t.Setenv("METADATA_BACKEND", "exiftool")
	t.Setenv("EXIFTOOL_PATH", "/usr/local/bin/exiftool")
	t.Setenv("WATCH_LIBRARY", "false")
	t.Setenv("WATCH_DEBOUNCE", "2s")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/custom/db.sqlite", cfg.DBPath)
	assert.Equal(t, BackendExiftool, cfg.MetadataBackend)
	assert.Equal(t, "/usr/local/bin/exiftool", cfg.ExiftoolPath)
	assert.False(t, cfg.WatchLibrary)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exifedit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":7000"
photo_path: /srv/photos
metadata_backend: exiftool
watch_debounce: 1s
`), 0600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LISTEN_ADDR", ":7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7001", cfg.ListenAddr, "env overrides file")
	assert.Equal(t, "/srv/photos", cfg.PhotoPath)
	assert.Equal(t, BackendExiftool, cfg.MetadataBackend)
	assert.Equal(t, time.Second, cfg.WatchDebounce)
	assert.Equal(t, "info", cfg.LogLevel, "defaults survive a partial file")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"METADATA_BACKEND": "magic"}},
		{"bad watch flag", map[string]string{"WATCH_LIBRARY": "maybe"}},
		{"bad debounce", map[string]string{"WATCH_DEBOUNCE": "soon"}},
		{"negative debounce", map[string]string{"WATCH_DEBOUNCE": "-1s"}},
		{"missing file", map[string]string{"CONFIG_FILE": "/nonexistent/exifedit.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
