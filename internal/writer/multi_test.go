package writer

import (
	"context"
	"errors"
	"testing"

	"github.com/netspeed/speedlog/internal/domain"
)

type fakeWriter struct {
	records  []domain.SpeedRecord
	flushes  int
	closed   bool
	writeErr error
	flushErr error
}

func (f *fakeWriter) WriteRecord(ctx context.Context, record *domain.SpeedRecord) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeWriter) Flush(ctx context.Context) error {
	f.flushes++
	return f.flushErr
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

type fakeMetricsWriter struct {
	fakeWriter
	metrics []domain.IngestMetrics
}

func (f *fakeMetricsWriter) WriteIngestMetrics(ctx context.Context, m *domain.IngestMetrics) error {
	f.metrics = append(f.metrics, *m)
	return nil
}

func TestMultiWriter_FanOut(t *testing.T) {
	ctx := context.Background()
	a := &fakeWriter{}
	b := &fakeMetricsWriter{}
	m := NewMultiWriter(a, b)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}

	record := &domain.SpeedRecord{Region: "East", PostTimeSeconds: f(1)}
	if err := m.WriteRecord(ctx, record); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := m.WriteIngestMetrics(ctx, &domain.IngestMetrics{FileName: "a.log"}); err != nil {
		t.Fatalf("WriteIngestMetrics() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for name, w := range map[string]*fakeWriter{"a": a, "b": &b.fakeWriter} {
		if len(w.records) != 1 || w.records[0].Region != "East" {
			t.Errorf("%s: expected one East record, got %v", name, w.records)
		}
		if w.flushes != 1 {
			t.Errorf("%s: expected 1 flush, got %d", name, w.flushes)
		}
		if !w.closed {
			t.Errorf("%s: expected closed", name)
		}
	}
	if len(b.metrics) != 1 || b.metrics[0].FileName != "a.log" {
		t.Errorf("expected metrics forwarded to metrics writer, got %v", b.metrics)
	}
}

func TestMultiWriter_JoinsErrorsAndContinues(t *testing.T) {
	ctx := context.Background()
	errA := errors.New("sink a down")
	errB := errors.New("sink b down")
	a := &fakeWriter{writeErr: errA, flushErr: errA}
	b := &fakeWriter{flushErr: errB}
	c := &fakeWriter{}
	m := NewMultiWriter(a, b, c)

	err := m.WriteRecord(ctx, &domain.SpeedRecord{Region: "East"})
	if !errors.Is(err, errA) {
		t.Errorf("expected errA, got %v", err)
	}
	if len(b.records) != 1 || len(c.records) != 1 {
		t.Errorf("expected later writers to still receive the record")
	}

	err = m.Flush(ctx)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected both errors joined, got %v", err)
	}
	if c.flushes != 1 {
		t.Errorf("expected last writer flushed")
	}
}
