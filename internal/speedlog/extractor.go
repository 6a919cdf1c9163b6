package speedlog

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/netspeed/speedlog/internal/domain"
)

// Stats summarizes a single extraction pass
type Stats struct {
	LinesRead      uint64
	LinesMatched   uint64 // Lines that matched at least one pattern (lookahead lines included)
	ParseFailures  uint64 // Matched captures that did not parse as float
	LinesTruncated uint64 // Oversized lines cut by the reader
	RecordsEmitted uint64
}

// truncationCounter is implemented by cursors that may shorten lines
type truncationCounter interface {
	Truncated() uint64
}

// EmitFunc receives each finished record in input order
type EmitFunc func(record domain.SpeedRecord) error

// Extractor turns speed-test log lines into speed records
// It holds no per-call state and is safe for concurrent use
type Extractor struct {
	patterns *Patterns
}

// NewExtractor creates an extractor with the default patterns
func NewExtractor() *Extractor {
	return NewExtractorWithPatterns(DefaultPatterns())
}

// NewExtractorWithPatterns creates an extractor with custom patterns
func NewExtractorWithPatterns(patterns *Patterns) *Extractor {
	return &Extractor{patterns: patterns}
}

var defaultExtractor = NewExtractor()

// Extract parses lines with the default extractor
func Extract(lines []string) []domain.SpeedRecord {
	return defaultExtractor.Extract(lines)
}

// Extract parses already split lines and returns the records in order
// Never fails: unmatched lines are skipped and empty records are dropped
func (e *Extractor) Extract(lines []string) []domain.SpeedRecord {
	records := make([]domain.SpeedRecord, 0)
	// Slice cursors never fail and the collector never returns an error
	_, _ = e.Run(context.Background(), NewSliceCursor(lines), func(record domain.SpeedRecord) error {
		records = append(records, record)
		return nil
	})
	return records
}

// ExtractReader streams r through the extractor, calling emit for each record
func (e *Extractor) ExtractReader(ctx context.Context, r io.Reader, emit EmitFunc) (Stats, error) {
	return e.Run(ctx, NewScannerCursor(r), emit)
}

// Run folds every line of cur into the working state
// Returned errors come only from the cursor, emit, or ctx
func (e *Extractor) Run(ctx context.Context, cur Cursor, emit EmitFunc) (stats Stats, err error) {
	var state workingState

	if tc, ok := cur.(truncationCounter); ok {
		defer func() { stats.LinesTruncated = tc.Truncated() }()
	}

	flush := func(s workingState) error {
		record, ok := s.record()
		if !ok {
			return nil
		}
		stats.RecordsEmitted++
		return emit(record)
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("extraction cancelled: %w", err)
		}

		line, ok := cur.Next()
		if !ok {
			break
		}
		stats.LinesRead++

		next, done, matched := e.step(state, line, cur, &stats)
		if matched {
			stats.LinesMatched++
		}
		if done != nil {
			if err := flush(*done); err != nil {
				return stats, fmt.Errorf("failed to emit record: %w", err)
			}
		}
		state = next

		// All four primary metrics present: emit and start a new record at the same timestamp
		if state.rec.PrimaryComplete() {
			if err := flush(state); err != nil {
				return stats, fmt.Errorf("failed to emit record: %w", err)
			}
			state = state.cleared()
		}
	}

	if err := cur.Err(); err != nil {
		return stats, fmt.Errorf("failed to read lines: %w", err)
	}

	if err := flush(state); err != nil {
		return stats, fmt.Errorf("failed to emit record: %w", err)
	}

	return stats, nil
}

// step applies one line to the state
// done is set when a timestamp change finished the previous record
func (e *Extractor) step(state workingState, line string, cur Cursor, stats *Stats) (next workingState, done *workingState, matched bool) {
	p := e.patterns

	if m := p.Region.FindStringSubmatch(line); m != nil {
		state = state.withRegion(strings.TrimSpace(m[1]))
		matched = true
	}

	if ts := p.Timestamp.FindString(line); ts != "" {
		state, done = state.withTimestamp(ts)
		matched = true
	}

	if v, ok := e.capture(p.PostTime, line, stats); ok {
		state.rec.PostTimeSeconds = v
		matched = true
	}
	if v, ok := e.capture(p.DownloadTime, line, stats); ok {
		state.rec.DownloadTimeSeconds = v
		matched = true
	}
	if v, ok := e.capture(p.PostRateFiles, line, stats); ok {
		state.rec.PostRateFilesPerSec = v
		e.lookahead(cur, &state.rec.PostRateMBPerSec, &state.rec.PostRateMbitsPerSec, stats)
		matched = true
	}
	if v, ok := e.capture(p.DownloadRateFiles, line, stats); ok {
		state.rec.DownloadRateFilesPerSec = v
		e.lookahead(cur, &state.rec.DownloadRateMBPerSec, &state.rec.DownloadRateMbitsPerSec, stats)
		matched = true
	}

	return state, done, matched
}

// capture matches re against line and parses its first group
// ok reports a pattern match; value is nil if the capture is not a number, and a
// nil value clears the field it is stored in
func (e *Extractor) capture(re *regexp.Regexp, line string, stats *Stats) (value *float64, ok bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	value = parseMetric(m[1])
	if value == nil {
		stats.ParseFailures++
	}
	return value, true
}

// lookahead consumes the next line if it is an "X MB/sec, Y Mbits/sec" continuation
// A non-matching line is left in place for normal processing
func (e *Extractor) lookahead(cur Cursor, mb, mbits **float64, stats *Stats) {
	next, ok := cur.Peek()
	if !ok {
		return
	}

	m := e.patterns.Throughput.FindStringSubmatch(strings.TrimSpace(next))
	if m == nil {
		return
	}

	cur.Next()
	stats.LinesRead++
	stats.LinesMatched++

	for i, dst := range []**float64{mb, mbits} {
		v := parseMetric(m[i+1])
		if v == nil {
			stats.ParseFailures++
		}
		*dst = v
	}
}
