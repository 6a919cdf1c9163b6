package writer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/netspeed/speedlog/internal/clickhouse"
	"github.com/netspeed/speedlog/internal/domain"
	"github.com/netspeed/speedlog/internal/retry"
	"github.com/rs/zerolog/log"
)

// ClickHouse DateTime64 valid range: 1925-01-01 to 2283-11-11
var (
	minClickHouseDateTime = time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2283, 11, 11, 23, 59, 59, 999999999, time.UTC)
)

// ensureValidDateTime ensures the time value is within ClickHouse DateTime64 range
// Returns the input time if valid, or minClickHouseDateTime if out of range or zero
func ensureValidDateTime(t time.Time) time.Time {
	if t.IsZero() || t.Before(minClickHouseDateTime) || t.After(maxClickHouseDateTime) {
		return minClickHouseDateTime
	}
	return t
}

// speedMetaColumns follow the domain columns in the speeds table
var speedMetaColumns = []string{"record_hash", "upload_id", "record_seq", "source_file", "ingested_at"}

const speedsTableDDL = `CREATE TABLE IF NOT EXISTS %s.speeds (
    Region String,
    Timestamp String,
    Post_Time_Seconds Nullable(Float64),
    Download_Time_Seconds Nullable(Float64),
    Post_Rate_Files_per_Sec Nullable(Float64),
    Download_Rate_Files_per_Sec Nullable(Float64),
    Post_Rate_MB_per_Sec Nullable(Float64),
    Post_Rate_Mbits_per_Sec Nullable(Float64),
    Download_Rate_MB_per_Sec Nullable(Float64),
    Download_Rate_Mbits_per_Sec Nullable(Float64),
    record_hash String,
    upload_id String,
    record_seq UInt64,
    source_file String,
    ingested_at DateTime64(3, 'UTC')
) ENGINE = MergeTree()
ORDER BY (Region, Timestamp, upload_id, record_seq)`

const ingestMetricsTableDDL = `CREATE TABLE IF NOT EXISTS %s.ingest_metrics (
    timestamp DateTime64(3, 'UTC'),
    upload_id String,
    file_path String,
    file_name String,
    file_digest String,
    file_size_bytes UInt64,
    lines_read UInt64,
    lines_matched UInt64,
    parse_failures UInt64,
    records_extracted UInt64,
    records_written UInt64,
    duplicate UInt8,
    start_time DateTime64(3, 'UTC'),
    end_time DateTime64(3, 'UTC'),
    error_count UInt32,
    parsing_time_ms UInt64,
    writing_time_ms UInt64,
    records_per_second Float64
) ENGINE = MergeTree()
ORDER BY (timestamp, file_digest)
TTL toDateTime(timestamp) + INTERVAL 90 DAY`

// schemaStatements returns the DDL creating every table the writer uses
func schemaStatements(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(speedsTableDDL, database),
		fmt.Sprintf(ingestMetricsTableDDL, database),
	}
}

// speedsInsertQuery names every column explicitly so the table may gain columns later
func speedsInsertQuery(database string) string {
	columns := make([]string, 0, len(domain.SpeedColumns)+len(speedMetaColumns))
	columns = append(columns, domain.SpeedColumns...)
	columns = append(columns, speedMetaColumns...)
	return fmt.Sprintf("INSERT INTO %s.speeds (%s)", database, strings.Join(columns, ", "))
}

// speedRow builds the values for one speeds row; nil metrics become NULL
func speedRow(record *domain.SpeedRecord, hash string) []interface{} {
	row := make([]interface{}, 0, len(domain.SpeedColumns)+len(speedMetaColumns))
	row = append(row, record.Region, record.Timestamp)
	for _, m := range record.Metrics() {
		row = append(row, m)
	}
	return append(row,
		hash,
		record.UploadID,
		record.Sequence,
		record.SourceFile,
		ensureValidDateTime(record.IngestedAt),
	)
}

// hashedRecord pairs a record with its hash
type hashedRecord struct {
	record *domain.SpeedRecord
	hash   string
}

// hashRecords pairs every record with its hash
// With dedup set, repeats inside the batch are dropped, keeping the first one
func hashRecords(records []*domain.SpeedRecord, dedup bool) []hashedRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]hashedRecord, 0, len(records))
	for _, r := range records {
		h := calculateSpeedRecordHash(r)
		if dedup {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
		}
		out = append(out, hashedRecord{record: r, hash: h})
	}
	return out
}

// dropExisting removes records whose hash is in existing
func dropExisting(records []hashedRecord, existing map[string]struct{}) []hashedRecord {
	filtered := make([]hashedRecord, 0, len(records))
	for _, r := range records {
		if _, ok := existing[r.hash]; !ok {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ClickHouseWriter writes speed records to ClickHouse in batches
type ClickHouseWriter struct {
	client   *clickhouse.Client
	database string
	cfg      BatchConfig
	retryCfg retry.Config

	batch     []*domain.SpeedRecord
	lastFlush time.Time
}

// NewClickHouseWriter creates a new ClickHouse batch writer
func NewClickHouseWriter(client *clickhouse.Client, cfg BatchConfig) *ClickHouseWriter {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 500
	}
	return &ClickHouseWriter{
		client:    client,
		database:  client.Database(),
		cfg:       cfg,
		retryCfg:  client.RetryConfig(),
		batch:     make([]*domain.SpeedRecord, 0, cfg.MaxSize),
		lastFlush: time.Now(),
	}
}

// EnsureSchema creates the database and tables if they do not exist
func (w *ClickHouseWriter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(w.database) {
		if err := w.client.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	log.Info().Str("database", w.database).Msg("ClickHouse schema ready")
	return nil
}

// WriteRecord adds a record to the batch, flushing when it is full or stale
func (w *ClickHouseWriter) WriteRecord(ctx context.Context, record *domain.SpeedRecord) error {
	// Copy: callers reuse their record values
	recordCopy := *record
	w.batch = append(w.batch, &recordCopy)

	if len(w.batch) >= w.cfg.MaxSize ||
		(w.cfg.FlushTimeout > 0 && time.Since(w.lastFlush).Milliseconds() >= w.cfg.FlushTimeout) {
		return w.Flush(ctx)
	}
	return nil
}

// Flush forces writing all pending records
func (w *ClickHouseWriter) Flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}

	// Snapshot and clear before the network round-trip
	snapshot := make([]*domain.SpeedRecord, len(w.batch))
	copy(snapshot, w.batch)
	w.batch = w.batch[:0]
	w.lastFlush = time.Now()

	return w.flushSnapshot(ctx, snapshot)
}

func (w *ClickHouseWriter) flushSnapshot(ctx context.Context, snapshot []*domain.SpeedRecord) error {
	startTime := time.Now()

	records := hashRecords(snapshot, w.cfg.EnableDeduplication)

	if w.cfg.EnableDeduplication {
		existing, err := w.existingHashes(ctx, records)
		if err != nil {
			return err
		}
		records = dropExisting(records, existing)
	}

	skipped := len(snapshot) - len(records)
	if len(records) == 0 {
		log.Debug().Int("skipped", skipped).Msg("All records in batch already stored")
		return nil
	}

	query := speedsInsertQuery(w.database)

	// A failed batch cannot be re-sent, so every attempt prepares a new one
	err := retry.Do(ctx, w.retryCfg, func() error {
		batch, err := w.client.Conn().PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, r := range records {
			if err := batch.Append(speedRow(r.record, r.hash)...); err != nil {
				_ = batch.Abort()
				return fmt.Errorf("failed to append to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().
		Int("written", len(records)).
		Int("skipped", skipped).
		Dur("duration", time.Since(startTime)).
		Msg("Speed batch written to ClickHouse")

	return nil
}

// existingHashes returns the subset of record hashes already present in the speeds table
func (w *ClickHouseWriter) existingHashes(ctx context.Context, records []hashedRecord) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(records) == 0 {
		return existing, nil
	}

	// Hashes are hex-encoded, so direct substitution is safe
	quoted := make([]string, len(records))
	for i, r := range records {
		quoted[i] = "'" + r.hash + "'"
	}
	query := fmt.Sprintf("SELECT record_hash FROM %s.speeds WHERE record_hash IN (%s)",
		w.database, strings.Join(quoted, ","))

	rows, err := w.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to check hashes: %w", err)
	}
	defer rows.Close()

	if err := scanHashes(rows, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func scanHashes(rows driver.Rows, into map[string]struct{}) error {
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return fmt.Errorf("failed to scan hash: %w", err)
		}
		into[hash] = struct{}{}
	}
	return rows.Err()
}

// WriteIngestMetrics writes per-file ingest statistics to ClickHouse
func (w *ClickHouseWriter) WriteIngestMetrics(ctx context.Context, metrics *domain.IngestMetrics) error {
	query := fmt.Sprintf("INSERT INTO %s.ingest_metrics", w.database)

	err := retry.Do(ctx, w.retryCfg, func() error {
		batch, err := w.client.Conn().PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		if err := batch.Append(metricsRow(metrics)...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append to batch: %w", err)
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("file", metrics.FileName).
		Uint64("records_written", metrics.RecordsWritten).
		Float64("records_per_second", metrics.RecordsPerSecond).
		Msg("Ingest metrics written to ClickHouse")

	return nil
}

// metricsRow builds the values for one ingest_metrics row in table column order
func metricsRow(m *domain.IngestMetrics) []interface{} {
	var duplicate uint8
	if m.Duplicate {
		duplicate = 1
	}
	return []interface{}{
		ensureValidDateTime(m.Timestamp),
		m.UploadID,
		m.FilePath,
		m.FileName,
		m.FileDigest,
		m.FileSizeBytes,
		m.LinesRead,
		m.LinesMatched,
		m.ParseFailures,
		m.RecordsExtracted,
		m.RecordsWritten,
		duplicate,
		ensureValidDateTime(m.StartTime),
		ensureValidDateTime(m.EndTime),
		m.ErrorCount,
		m.ParsingTimeMs,
		m.WritingTimeMs,
		m.RecordsPerSecond,
	}
}

// Close flushes pending records; the client is owned by the caller
func (w *ClickHouseWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return w.Flush(ctx)
}
