package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/s3file/pkg/s3file"
)

// run executes the CLI against a local backend rooted in dir.
func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	argv := append([]string{
		"s3file",
		"--backend", "local",
		"--local-root", filepath.Join(dir, "remote"),
		"--staging-dir", filepath.Join(dir, "staging"),
		"--cache-dir", filepath.Join(dir, "cache"),
		"--log-level", "error",
	}, args...)
	err := newApp(strings.NewReader(stdin), &out).Run(argv)
	return out.String(), err
}

func TestPutCatRoundTrip(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "hello", "put", "bucket/greeting.txt")
	require.NoError(t, err)

	out, err := run(t, dir, "", "cat", "bucket/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	staged, err := os.ReadDir(filepath.Join(dir, "staging"))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "notes", "save", "--text", "bucket/notes.txt")
	require.NoError(t, err)

	out, err := run(t, dir, "", "load", "--text", "bucket/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes", out)

	_, err = os.Stat(filepath.Join(dir, "cache", "bucket", "notes.txt"))
	assert.NoError(t, err)
}

func TestUploadListDownload(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "x.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b", "y.txt"), []byte("y"), 0644))

	_, err := run(t, dir, "", "upload", src, "bucket/dst")
	require.NoError(t, err)

	out, err := run(t, dir, "", "ls", "bucket/dst")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bucket/dst/b/y.txt", "bucket/dst/x.txt"}, strings.Fields(out))

	back := filepath.Join(dir, "back")
	_, err = run(t, dir, "", "download", "bucket/dst", back)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(back, "b", "y.txt"))
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))
}

func TestArgumentCount(t *testing.T) {
	_, err := run(t, t.TempDir(), "", "upload", "only-one")
	assert.Error(t, err)
}

func TestUnknownBackend(t *testing.T) {
	var out bytes.Buffer
	err := newApp(strings.NewReader(""), &out).Run([]string{"s3file", "--backend", "ftp", "ls", "bucket"})
	assert.Error(t, err)
}

func TestModeFlag(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "héllo", "put", "--mode", "w", "bucket/text.txt")
	require.NoError(t, err)

	out, err := run(t, dir, "", "cat", "--mode", "r", "bucket/text.txt")
	require.NoError(t, err)
	assert.Equal(t, "héllo", out)

	_, err = run(t, dir, "x", "put", "--mode", "x", "bucket/text.txt")
	assert.ErrorIs(t, err, s3file.ErrInvalidMode)

	_, err = run(t, dir, "", "cat", "--mode", "wb", "bucket/text.txt")
	assert.ErrorIs(t, err, s3file.ErrInvalidMode)

	_, err = run(t, dir, "x", "put", "--mode", "rb", "bucket/text.txt")
	assert.ErrorIs(t, err, s3file.ErrInvalidMode)
}

func TestBackendFlagIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	err := newApp(strings.NewReader("v"), &out).Run([]string{
		"s3file",
		"--backend", "LOCAL",
		"--local-root", filepath.Join(dir, "remote"),
		"--staging-dir", filepath.Join(dir, "staging"),
		"--log-level", "error",
		"put", "bucket/k",
	})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "remote", "bucket", "k"))
	assert.NoError(t, err)
}
