package transfer

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/s3file/pkg/storage"
	"github.com/fruitsalade/s3file/pkg/storage/local"
)

func newTestEngine(t *testing.T) (*Engine, storage.Transport, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/remote/bucket", 0755))
	tr, err := local.New(local.Config{RootPath: "/remote", Store: fsys, Local: fsys})
	require.NoError(t, err)
	return New(tr, WithFs(fsys)), tr, fsys
}

func put(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0644))
}

func read(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func paths(t *testing.T, tr storage.Transport, prefix string) []string {
	t.Helper()
	objects, err := storage.Collect(tr.List(context.Background(), prefix))
	require.NoError(t, err)
	var out []string
	for _, o := range objects {
		out = append(out, o.Path)
	}
	return out
}

func TestUploadTree(t *testing.T) {
	e, tr, fsys := newTestEngine(t)
	put(t, fsys, "/local/a/x.txt", "x")
	put(t, fsys, "/local/a/b/y.txt", "yy")

	res, err := e.Upload(context.Background(), "/local/a", "bucket/dst")
	require.NoError(t, err)
	assert.Equal(t, Result{Files: 2, Bytes: 3}, res)

	assert.ElementsMatch(t, []string{"bucket/dst/x.txt", "bucket/dst/b/y.txt"}, paths(t, tr, "bucket/"))
	assert.Equal(t, "yy", read(t, fsys, "/remote/bucket/dst/b/y.txt"))
}

func TestUploadTrailingSeparator(t *testing.T) {
	e, tr, fsys := newTestEngine(t)
	put(t, fsys, "/local/a/x.txt", "x")

	_, err := e.Upload(context.Background(), "/local/a", "bucket/dst/")
	require.NoError(t, err)
	assert.Equal(t, []string{"bucket/dst/x.txt"}, paths(t, tr, "bucket/"))
}

func TestUploadSingleFile(t *testing.T) {
	e, tr, fsys := newTestEngine(t)
	put(t, fsys, "/local/report.csv", "a,b\n")

	res, err := e.Upload(context.Background(), "/local/report.csv", "bucket/reports/latest.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, []string{"bucket/reports/latest.csv"}, paths(t, tr, "bucket/"))
}

func TestUploadMissingPath(t *testing.T) {
	e, tr, _ := newTestEngine(t)

	_, err := e.Upload(context.Background(), "/local/nope", "bucket/dst")
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Empty(t, paths(t, tr, "bucket/"))
}

func TestUploadEmptyDirectory(t *testing.T) {
	e, tr, fsys := newTestEngine(t)
	require.NoError(t, fsys.MkdirAll("/local/empty/sub", 0755))

	res, err := e.Upload(context.Background(), "/local/empty", "bucket/dst")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, paths(t, tr, "bucket/"))
}

// failingTransport fails UploadFile and DownloadFile for one remote path.
type failingTransport struct {
	storage.Transport
	failOn  string
	uploads []string
}

var errInjected = errors.New("injected failure")

func (f *failingTransport) UploadFile(ctx context.Context, localPath, remotePath string) error {
	if remotePath == f.failOn {
		return errInjected
	}
	f.uploads = append(f.uploads, remotePath)
	return f.Transport.UploadFile(ctx, localPath, remotePath)
}

func (f *failingTransport) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	if remotePath == f.failOn {
		return errInjected
	}
	return f.Transport.DownloadFile(ctx, remotePath, localPath)
}

func TestUploadAbortsOnFirstError(t *testing.T) {
	_, tr, fsys := newTestEngine(t)
	put(t, fsys, "/local/a/1.txt", "1")
	put(t, fsys, "/local/a/2.txt", "2")
	put(t, fsys, "/local/a/3.txt", "3")

	ft := &failingTransport{Transport: tr, failOn: "bucket/dst/2.txt"}
	e := New(ft, WithFs(fsys))

	res, err := e.Upload(context.Background(), "/local/a", "bucket/dst")
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, []string{"bucket/dst/1.txt"}, ft.uploads, "no upload after the failure")
	assert.Equal(t, []string{"bucket/dst/1.txt"}, paths(t, tr, "bucket/"), "earlier uploads are kept")
}

func TestDownloadTree(t *testing.T) {
	e, _, fsys := newTestEngine(t)
	put(t, fsys, "/remote/bucket/src/x.txt", "x")
	put(t, fsys, "/remote/bucket/src/b/y.txt", "yy")
	put(t, fsys, "/remote/bucket/other/z.txt", "z")

	res, err := e.Download(context.Background(), "bucket/src", "/out")
	require.NoError(t, err)
	assert.Equal(t, Result{Files: 2, Bytes: 3}, res)

	assert.Equal(t, "x", read(t, fsys, "/out/x.txt"))
	assert.Equal(t, "yy", read(t, fsys, "/out/b/y.txt"))
	ok, _ := afero.Exists(fsys, "/out/z.txt")
	assert.False(t, ok)
}

func TestDownloadSingleObject(t *testing.T) {
	e, _, fsys := newTestEngine(t)
	put(t, fsys, "/remote/bucket/data/report.csv", "a,b\n")

	res, err := e.Download(context.Background(), "bucket/data/report.csv", "/out/latest.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, "a,b\n", read(t, fsys, "/out/latest.csv"))
}

func TestDownloadSiblingPrefix(t *testing.T) {
	e, _, fsys := newTestEngine(t)
	put(t, fsys, "/remote/bucket/foo/a", "a")
	put(t, fsys, "/remote/bucket/foobar/b", "b")

	res, err := e.Download(context.Background(), "bucket/foo", "/out")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, "a", read(t, fsys, "/out/a"))
	assert.Equal(t, "b", read(t, fsys, "/out/bar/b"))
}

func TestDownloadNothingListed(t *testing.T) {
	e, _, fsys := newTestEngine(t)

	res, err := e.Download(context.Background(), "bucket/none", "/out")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	ok, _ := afero.Exists(fsys, "/out")
	assert.False(t, ok)
}

func TestDownloadAbortsOnFirstError(t *testing.T) {
	_, tr, fsys := newTestEngine(t)
	put(t, fsys, "/remote/bucket/src/1", "1")
	put(t, fsys, "/remote/bucket/src/2", "2")
	put(t, fsys, "/remote/bucket/src/3", "3")

	e := New(&failingTransport{Transport: tr, failOn: "bucket/src/2"}, WithFs(fsys))

	res, err := e.Download(context.Background(), "bucket/src", "/out")
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 1, res.Files)
	ok, _ := afero.Exists(fsys, "/out/3")
	assert.False(t, ok)
}

func TestDownloadMissingContainer(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.Download(context.Background(), "nobucket/x", "/out")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRelativeKey(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"bucket/src", "bucket/src/x.txt", "x.txt"},
		{"bucket/src/", "bucket/src/b/y.txt", "b/y.txt"},
		{"bucket/src/x.txt", "bucket/src/x.txt", ""},
		{"bucket/foo", "bucket/foobar/b", "bar/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeKey(tt.prefix, tt.path), tt.path)
	}
}
