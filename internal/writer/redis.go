package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/netspeed/speedlog/internal/domain"
	"github.com/netspeed/speedlog/internal/retry"
	"github.com/rs/zerolog/log"
)

const (
	redisRegionKeyPrefix = "speeds:region:"
	redisLatestKey       = "speeds:latest"
)

// RedisOptions configures the Redis latest-results cache
type RedisOptions struct {
	Addr  string
	DB    int
	Keep  int // Records kept per region list
	Retry retry.Config
}

// redisRecord is the cached JSON value: the record columns plus ingest metadata
type redisRecord struct {
	domain.SpeedRecord
	UploadID   string    `json:"upload_id,omitempty"`
	Sequence   uint64    `json:"seq,omitempty"`
	SourceFile string    `json:"source_file,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// RedisWriter keeps the newest records per region in Redis for dashboards
//
// Layout:
//
//	speeds:region:<region>  list, newest first, trimmed to Keep entries
//	speeds:latest           hash region -> newest record
type RedisWriter struct {
	client   *redis.Client
	keep     int
	retryCfg retry.Config
	pending  []*domain.SpeedRecord
}

// NewRedisWriter connects to Redis and verifies the connection with retry
func NewRedisWriter(ctx context.Context, opts RedisOptions) (*RedisWriter, error) {
	if opts.Keep <= 0 {
		opts.Keep = 100
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	if err := retry.Do(ctx, opts.Retry, func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")

	return &RedisWriter{
		client:   client,
		keep:     opts.Keep,
		retryCfg: opts.Retry,
	}, nil
}

// regionKey returns the list key for a region
func regionKey(region string) string {
	return redisRegionKeyPrefix + region
}

// encodeRedisRecord marshals a record with its ingest metadata
func encodeRedisRecord(record *domain.SpeedRecord) ([]byte, error) {
	return json.Marshal(redisRecord{
		SpeedRecord: *record,
		UploadID:    record.UploadID,
		Sequence:    record.Sequence,
		SourceFile:  record.SourceFile,
		IngestedAt:  record.IngestedAt,
	})
}

// WriteRecord buffers a record until Flush
func (w *RedisWriter) WriteRecord(ctx context.Context, record *domain.SpeedRecord) error {
	recordCopy := *record
	w.pending = append(w.pending, &recordCopy)
	return nil
}

// Flush pushes buffered records in one transaction
// Records are pushed in input order, so the last record of a region ends up newest
func (w *RedisWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	payloads := make([][]byte, len(w.pending))
	for i, record := range w.pending {
		data, err := encodeRedisRecord(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		payloads[i] = data
	}

	err := retry.Do(ctx, w.retryCfg, func() error {
		_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, record := range w.pending {
				key := regionKey(record.Region)
				pipe.LPush(ctx, key, payloads[i])
				pipe.LTrim(ctx, key, 0, int64(w.keep-1))
				pipe.HSet(ctx, redisLatestKey, record.Region, payloads[i])
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write records to redis: %w", err)
	}

	log.Debug().Int("records", len(w.pending)).Msg("Speed records cached in Redis")

	w.pending = w.pending[:0]
	return nil
}

// Latest returns the newest cached record per region
func (w *RedisWriter) Latest(ctx context.Context) (map[string]domain.SpeedRecord, error) {
	values, err := retry.DoWithResult(ctx, w.retryCfg, func() (map[string]string, error) {
		return w.client.HGetAll(ctx, redisLatestKey).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read latest records: %w", err)
	}

	latest := make(map[string]domain.SpeedRecord, len(values))
	for region, data := range values {
		var r redisRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode record for %s: %w", region, err)
		}
		record := r.SpeedRecord
		record.UploadID = r.UploadID
		record.Sequence = r.Sequence
		record.SourceFile = r.SourceFile
		record.IngestedAt = r.IngestedAt
		latest[region] = record
	}
	return latest, nil
}

// Close flushes pending records and closes the connection
func (w *RedisWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	flushErr := w.Flush(ctx)
	if err := w.client.Close(); err != nil && flushErr == nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return flushErr
}
