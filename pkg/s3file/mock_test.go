package s3file

import (
	"context"
	"io"
	"iter"

	"github.com/stretchr/testify/mock"

	"github.com/fruitsalade/s3file/pkg/storage"
)

// mockTransport records every transport call. A call without a matching
// expectation fails the test.
type mockTransport struct {
	mock.Mock
}

var _ storage.Transport = (*mockTransport)(nil)

func (m *mockTransport) Stream(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockTransport) UploadFile(ctx context.Context, localPath, remotePath string) error {
	return m.Called(ctx, localPath, remotePath).Error(0)
}

func (m *mockTransport) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	return m.Called(ctx, remotePath, localPath).Error(0)
}

func (m *mockTransport) List(ctx context.Context, prefix string) iter.Seq2[storage.Object, error] {
	return m.Called(ctx, prefix).Get(0).(iter.Seq2[storage.Object, error])
}

func (m *mockTransport) Type() string { return "mock" }

func (m *mockTransport) Close() error { return nil }
