package writer

import (
	"context"

	"github.com/netspeed/speedlog/internal/domain"
)

// RecordWriter persists speed records
type RecordWriter interface {
	// WriteRecord adds a record to the writer; it may be buffered until Flush
	WriteRecord(ctx context.Context, record *domain.SpeedRecord) error

	// Flush forces writing all pending records
	Flush(ctx context.Context) error

	// Close flushes pending records and releases the writer
	Close() error
}

// MetricsWriter persists per-file ingest statistics
type MetricsWriter interface {
	WriteIngestMetrics(ctx context.Context, metrics *domain.IngestMetrics) error
}

// BatchConfig configures batch behavior
type BatchConfig struct {
	MaxSize             int   // Maximum records per batch
	FlushTimeout        int64 // Maximum milliseconds to wait before flush
	EnableDeduplication bool  // Skip records whose hash is already stored (slower)
}
