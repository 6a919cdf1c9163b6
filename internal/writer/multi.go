package writer

import (
	"context"
	"errors"

	"github.com/netspeed/speedlog/internal/domain"
)

// MultiWriter fans records out to several writers
// Every writer is called even if an earlier one fails; errors are joined
type MultiWriter struct {
	writers []RecordWriter
}

// NewMultiWriter creates a fan-out writer
func NewMultiWriter(writers ...RecordWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Len returns the number of wrapped writers
func (m *MultiWriter) Len() int {
	return len(m.writers)
}

// WriteRecord writes the record to every writer
func (m *MultiWriter) WriteRecord(ctx context.Context, record *domain.SpeedRecord) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteRecord(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every writer
func (m *MultiWriter) Flush(ctx context.Context) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteIngestMetrics forwards metrics to the writers that store them
func (m *MultiWriter) WriteIngestMetrics(ctx context.Context, metrics *domain.IngestMetrics) error {
	var errs []error
	for _, w := range m.writers {
		mw, ok := w.(MetricsWriter)
		if !ok {
			continue
		}
		if err := mw.WriteIngestMetrics(ctx, metrics); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
