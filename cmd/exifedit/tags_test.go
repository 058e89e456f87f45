package main

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := execute(context.Background())
	return out.String(), err
}

func writeJPEG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
	path := filepath.Join(t.TempDir(), "cli.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestTagsSetAndShow(t *testing.T) {
	t.Setenv("METADATA_BACKEND", "native")
	t.Setenv("LOG_LEVEL", "error")
	path := writeJPEG(t)

	out, err := runCLI(t, "tags", "set", path,
		"--datetime", "2023:01:06 20:30:45",
		"--latitude", "41/1,24/1,3000/100",
		"--longitude", "2/1,10/1,2600/100",
		"--make", "Canon",
		"--model", "EOS 5D",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Canon")

	out, err = runCLI(t, "tags", "show", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2023:01:06 20:30:45")
	assert.Contains(t, out, "41/1,24/1,3000/100")
	assert.Contains(t, out, "EOS 5D")
	assert.NotContains(t, out, "invalid")
}

func TestTagsSetRejectsInvalidValues(t *testing.T) {
	t.Setenv("METADATA_BACKEND", "native")
	t.Setenv("LOG_LEVEL", "error")
	path := writeJPEG(t)
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = runCLI(t, "tags", "set", path,
		"--datetime", "yesterday",
		"--latitude", "41/1,24/1,3000/100",
		"--longitude", "2/1,10/1,2600/100",
		"--make", "Canon",
		"--model", "EOS 5D",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creation date")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestTagsShowMissingFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	_, err := runCLI(t, "tags", "show", filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestExecuteLogsFailureToLogFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	logFile := filepath.Join(t.TempDir(), "exifedit.log")
	t.Setenv("METADATA_BACKEND", "native")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", logFile)

	_, err := runCLI(t, "tags", "show", filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
	assert.Nil(t, env.cleanup)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "failed to execute command")
	assert.Contains(t, string(data), "missing.jpg")
}
