package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netspeed/speedlog/internal/domain"
	"github.com/netspeed/speedlog/internal/ledger"
	"github.com/netspeed/speedlog/internal/logreader"
	"github.com/netspeed/speedlog/internal/mapping"
	"github.com/netspeed/speedlog/internal/speedlog"
	"github.com/netspeed/speedlog/internal/writer"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Options configures log discovery for the polling loop
type Options struct {
	LogDirs      []string
	LogPatterns  []string
	PollInterval time.Duration
	MinFileAge   time.Duration // Files modified more recently are left for a later scan (default: PollInterval)
}

// fileState identifies a file version already handled by the polling loop
type fileState struct {
	size    int64
	modTime time.Time
}

// IngestService extracts speed records from log files and hands them to the sinks
type IngestService struct {
	extractor *speedlog.Extractor
	regions   *mapping.RegionMap
	ledger    ledger.Store
	writer    writer.RecordWriter
	metrics   writer.MetricsWriter // nil when no sink stores metrics
	opts      Options

	now func() time.Time

	mu       sync.Mutex
	seen     map[string]fileState // path -> last handled version
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewIngestService creates a new ingest service
func NewIngestService(w writer.RecordWriter, store ledger.Store, regions *mapping.RegionMap, opts Options) (*IngestService, error) {
	if w == nil {
		return nil, fmt.Errorf("record writer is required")
	}
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if regions == nil {
		regions = mapping.NewRegionMap()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.MinFileAge <= 0 {
		opts.MinFileAge = opts.PollInterval
	}

	s := &IngestService{
		extractor: speedlog.NewExtractor(),
		regions:   regions,
		ledger:    store,
		writer:    w,
		opts:      opts,
		now:       time.Now,
		seen:      make(map[string]fileState),
	}
	if mw, ok := w.(writer.MetricsWriter); ok {
		s.metrics = mw
	}
	return s, nil
}

// IngestFile extracts one log file and writes its records
// A file whose content digest is already in the ledger is skipped unless force is set
func (s *IngestService) IngestFile(ctx context.Context, path string, force bool) (m *domain.IngestMetrics, err error) {
	ctx, span := startSpan(ctx, "IngestFile",
		attribute.String("file.path", path),
		attribute.Bool("ingest.force", force),
	)
	defer func() { endSpan(span, err, "ingest finished") }()

	startTime := s.now()
	m = &domain.IngestMetrics{
		FilePath:  path,
		FileName:  filepath.Base(path),
		StartTime: startTime,
	}
	defer func() {
		if err != nil {
			m.ErrorCount++
		}
		m.EndTime = s.now()
		m.Timestamp = m.EndTime
		s.writeMetrics(ctx, m)
	}()

	digest, size, err := fileDigest(path)
	if err != nil {
		return m, err
	}
	m.FileDigest = digest
	m.FileSizeBytes = uint64(size)
	span.SetAttributes(attribute.String("file.digest", digest))

	existing, err := s.ledger.Get(ctx, digest)
	if err != nil {
		return m, fmt.Errorf("failed to check ledger: %w", err)
	}
	if existing != nil && !force {
		m.Duplicate = true
		m.UploadID = existing.UploadID
		log.Info().
			Str("file", path).
			Str("digest", digest).
			Str("previous_path", existing.Path).
			Time("ingested_at", existing.IngestedAt).
			Msg("File already ingested, skipping")
		return m, nil
	}

	m.UploadID = uuid.NewString()
	ingestedAt := startTime.UTC()

	rc, err := speedlog.OpenLog(path)
	if err != nil {
		return m, err
	}
	defer rc.Close()

	parseStart := s.now()
	var (
		writeErrs []error
		seq       uint64
	)
	stats, err := s.extractor.ExtractReader(ctx, rc, func(record domain.SpeedRecord) error {
		seq++
		record.Region = s.regions.Resolve(record.Region)
		record.UploadID = m.UploadID
		record.Sequence = seq
		record.SourceFile = path
		record.IngestedAt = ingestedAt

		if err := s.writer.WriteRecord(ctx, &record); err != nil {
			// Keep extracting; one failing sink must not hide the records of the others
			writeErrs = append(writeErrs, err)
			return nil
		}
		m.RecordsWritten++
		return nil
	})
	m.ParsingTimeMs = uint64(s.now().Sub(parseStart).Milliseconds())
	m.LinesRead = stats.LinesRead
	m.LinesMatched = stats.LinesMatched
	m.ParseFailures = stats.ParseFailures
	m.RecordsExtracted = stats.RecordsEmitted
	m.ErrorCount += uint32(len(writeErrs))

	writeStart := s.now()
	flushErr := s.writer.Flush(ctx)
	m.WritingTimeMs = uint64(s.now().Sub(writeStart).Milliseconds())

	if err != nil {
		return m, fmt.Errorf("failed to extract %s: %w", path, err)
	}
	if err := errors.Join(append(writeErrs, flushErr)...); err != nil {
		return m, fmt.Errorf("failed to write records from %s: %w", path, err)
	}

	if total := m.ParsingTimeMs + m.WritingTimeMs; total > 0 {
		m.RecordsPerSecond = float64(m.RecordsWritten) / (float64(total) / 1000)
	}

	entry := &domain.UploadEntry{
		Digest:     digest,
		Path:       path,
		SizeBytes:  uint64(size),
		Records:    m.RecordsWritten,
		UploadID:   m.UploadID,
		IngestedAt: ingestedAt,
	}
	if err := s.ledger.Put(ctx, entry); err != nil {
		return m, fmt.Errorf("failed to record upload: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("records.written", int64(m.RecordsWritten)),
		attribute.Int64("lines.read", int64(m.LinesRead)),
	)

	log.Info().
		Str("file", path).
		Str("upload_id", m.UploadID).
		Uint64("lines_read", m.LinesRead).
		Uint64("records", m.RecordsWritten).
		Uint64("parse_failures", m.ParseFailures).
		Msg("File ingested")

	return m, nil
}

// writeMetrics stores ingest statistics; failures are logged only
func (s *IngestService) writeMetrics(ctx context.Context, m *domain.IngestMetrics) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.WriteIngestMetrics(ctx, m); err != nil {
		log.Warn().Err(err).Str("file", m.FilePath).Msg("Failed to write ingest metrics")
	}
}

// ScanOnce ingests every discovered file not yet handled in its current version
// Per-file failures are logged and left for the next scan
func (s *IngestService) ScanOnce(ctx context.Context) (ingested int, err error) {
	ctx, span := startSpan(ctx, "ScanOnce", attribute.Int("dirs", len(s.opts.LogDirs)))
	defer func() { endSpan(span, err, "scan finished") }()

	files, err := logreader.ScanForLogs(s.opts.LogDirs, s.opts.LogPatterns)
	if err != nil {
		return 0, fmt.Errorf("failed to scan for logs: %w", err)
	}

	failed, pending := 0, 0
	settledBefore := s.now().Add(-s.opts.MinFileAge)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return ingested, err
		}

		// The speed-test tool may still be appending to it
		if file.ModTime.After(settledBefore) {
			pending++
			continue
		}

		state := fileState{size: file.Size, modTime: file.ModTime}
		s.mu.Lock()
		prev, ok := s.seen[file.Path]
		s.mu.Unlock()
		if ok && prev == state {
			continue
		}

		m, err := s.IngestFile(ctx, file.Path, false)
		if err != nil {
			failed++
			log.Error().Err(err).Str("file", file.Path).Msg("Failed to ingest file")
			continue
		}

		s.mu.Lock()
		s.seen[file.Path] = state
		s.mu.Unlock()
		if !m.Duplicate {
			ingested++
		}
	}

	log.Debug().
		Int("files", len(files)).
		Int("ingested", ingested).
		Int("failed", failed).
		Int("pending", pending).
		Msg("Log scan completed")

	return ingested, nil
}

// Start scans the configured directories every poll interval until ctx is
// cancelled or Stop is called
func (s *IngestService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopChan != nil {
		s.mu.Unlock()
		return fmt.Errorf("ingest service already started")
	}
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stopChan, doneChan := s.stopChan, s.doneChan
	s.mu.Unlock()
	defer close(doneChan)

	log.Info().
		Strs("dirs", s.opts.LogDirs).
		Strs("patterns", s.opts.LogPatterns).
		Dur("interval", s.opts.PollInterval).
		Msg("Ingest service starting...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Ingest service stopped")
			return ctx.Err()
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *IngestService) scan(ctx context.Context) {
	if _, err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Log scan failed")
	}
}

// Stop stops the polling loop and waits for the current scan to finish
func (s *IngestService) Stop() error {
	s.mu.Lock()
	stopChan, doneChan := s.stopChan, s.doneChan
	s.stopChan = nil
	s.mu.Unlock()

	if stopChan == nil {
		return nil
	}

	log.Info().Msg("Ingest service stopping...")
	close(stopChan)
	<-doneChan
	return nil
}
