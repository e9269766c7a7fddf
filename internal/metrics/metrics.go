// Package metrics provides Prometheus metrics for remote object transfers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Storage backend metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "s3file_storage_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3file_storage_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Content transfer metrics
	bytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3file_bytes_transferred_total",
			Help: "Total bytes moved between local disk and the object store",
		},
		[]string{"direction"},
	)

	// Staging metrics
	stagingFilesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "s3file_staging_files_open",
			Help: "Number of write handles currently holding a local staging file",
		},
	)
)

// Transfer directions.
const (
	DirectionUpload   = "upload"
	DirectionDownload = "download"
)

// RecordStorageOperation records a storage backend operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// RecordBytes adds to the transferred byte count for a direction.
func RecordBytes(direction string, n int64) {
	if n <= 0 {
		return
	}
	bytesTransferred.WithLabelValues(direction).Add(float64(n))
}

// StagingFileOpened increments the open staging file gauge.
func StagingFileOpened() {
	stagingFilesOpen.Inc()
}

// StagingFileReleased decrements the open staging file gauge.
func StagingFileReleased() {
	stagingFilesOpen.Dec()
}

// WriteTextfile writes the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
