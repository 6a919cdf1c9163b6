package writer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/netspeed/speedlog/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultCSVFile is the file name the dashboard loader reads
const DefaultCSVFile = "NetworkSpeed.csv"

// CSVEncoder writes speed records as CSV rows in column order
type CSVEncoder struct {
	w           *csv.Writer
	writeHeader bool
}

// NewCSVEncoder creates an encoder; the header row is emitted before the first record when header is true
func NewCSVEncoder(w io.Writer, header bool) *CSVEncoder {
	return &CSVEncoder{w: csv.NewWriter(w), writeHeader: header}
}

// Encode writes one record
func (e *CSVEncoder) Encode(record *domain.SpeedRecord) error {
	if e.writeHeader {
		if err := e.w.Write(domain.SpeedColumns); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		e.writeHeader = false
	}
	if err := e.w.Write(csvRow(record)); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	return nil
}

// Flush writes buffered rows to the underlying writer
func (e *CSVEncoder) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

// csvRow renders a record; nil metrics become empty cells
func csvRow(record *domain.SpeedRecord) []string {
	row := make([]string, 0, len(domain.SpeedColumns))
	row = append(row, record.Region, record.Timestamp)
	for _, m := range record.Metrics() {
		row = append(row, formatMetric(m))
	}
	return row
}

// formatMetric renders a metric in its shortest exact decimal form
func formatMetric(m *float64) string {
	if m == nil {
		return ""
	}
	return strconv.FormatFloat(*m, 'f', -1, 64)
}

// CSVWriter appends speed records to a CSV file
// The header is written only when the file is missing or empty
type CSVWriter struct {
	path    string
	pending []*domain.SpeedRecord
}

// NewCSVWriter creates a CSV writer appending to path
func NewCSVWriter(path string) *CSVWriter {
	if path == "" {
		path = DefaultCSVFile
	}
	return &CSVWriter{path: path}
}

// WriteRecord buffers a record until Flush
func (w *CSVWriter) WriteRecord(ctx context.Context, record *domain.SpeedRecord) error {
	recordCopy := *record
	w.pending = append(w.pending, &recordCopy)
	return nil
}

// Flush appends all buffered records to the file
func (w *CSVWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat csv file: %w", err)
	}

	enc := NewCSVEncoder(file, info.Size() == 0)
	for _, record := range w.pending {
		if err := enc.Encode(record); err != nil {
			file.Close()
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush csv file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close csv file: %w", err)
	}

	log.Debug().
		Str("path", w.path).
		Int("records", len(w.pending)).
		Msg("Speed records appended to CSV")

	w.pending = w.pending[:0]
	return nil
}

// Close flushes pending records
func (w *CSVWriter) Close() error {
	return w.Flush(context.Background())
}
