package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStorageOperation(t *testing.T) {
	ok := storageOperationsTotal.WithLabelValues("test", "put", "success")
	failed := storageOperationsTotal.WithLabelValues("test", "put", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordStorageOperation("test", "put", 10*time.Millisecond, true)
	RecordStorageOperation("test", "put", 10*time.Millisecond, false)
	RecordStorageOperation("test", "put", 10*time.Millisecond, false)

	if got := testutil.ToFloat64(ok) - okBefore; got != 1 {
		t.Errorf("success count delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 2 {
		t.Errorf("error count delta = %v, want 2", got)
	}
}

func TestRecordBytesIgnoresNonPositive(t *testing.T) {
	c := bytesTransferred.WithLabelValues(DirectionUpload)
	before := testutil.ToFloat64(c)

	RecordBytes(DirectionUpload, 0)
	RecordBytes(DirectionUpload, -5)
	RecordBytes(DirectionUpload, 42)

	if got := testutil.ToFloat64(c) - before; got != 42 {
		t.Errorf("bytes delta = %v, want 42", got)
	}
}

func TestStagingGauge(t *testing.T) {
	before := testutil.ToFloat64(stagingFilesOpen)
	StagingFileOpened()
	StagingFileOpened()
	StagingFileReleased()
	if got := testutil.ToFloat64(stagingFilesOpen) - before; got != 1 {
		t.Errorf("gauge delta = %v, want 1", got)
	}
	StagingFileReleased()
}

func TestWriteTextfile(t *testing.T) {
	RecordStorageOperation("test", "list", time.Millisecond, true)

	path := filepath.Join(t.TempDir(), "s3file.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "s3file_storage_operations_total") {
		t.Error("textfile missing s3file_storage_operations_total")
	}
}
