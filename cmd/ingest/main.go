package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/netspeed/speedlog/internal/clickhouse"
	"github.com/netspeed/speedlog/internal/config"
	"github.com/netspeed/speedlog/internal/ledger"
	"github.com/netspeed/speedlog/internal/mapping"
	"github.com/netspeed/speedlog/internal/observability"
	"github.com/netspeed/speedlog/internal/service"
	"github.com/netspeed/speedlog/internal/writer"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func main() {
	force := flag.Bool("force", false, "re-ingest files already recorded in the ledger")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ingest [-force] [log files...]\n")
		fmt.Fprintf(os.Stderr, "Without files, LOG_DIRS is polled until interrupted.\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	log.Info().
		Str("version", version).
		Msg("Starting speed log ingest")

	// Initialize tracer (no-op when disabled)
	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "speedlog-ingest",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer shutdown(context.Background())
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args(), *force); err != nil {
		log.Error().Err(err).Msg("Ingest failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, files []string, force bool) error {
	sinks, closeSinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	store, err := ledger.NewBoltDBStore(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()

	regions, err := mapping.LoadRegionMap(cfg.RegionMapPath)
	if err != nil {
		return err
	}

	svc, err := service.NewIngestService(sinks, store, regions, service.Options{
		LogDirs:      cfg.LogDirs,
		LogPatterns:  cfg.LogPatterns,
		PollInterval: cfg.PollInterval,
		MinFileAge:   cfg.MinFileAge,
	})
	if err != nil {
		return fmt.Errorf("failed to create ingest service: %w", err)
	}

	if len(files) > 0 {
		return ingestFiles(ctx, svc, files, force)
	}

	if len(cfg.LogDirs) == 0 {
		return fmt.Errorf("no files given and LOG_DIRS is empty")
	}

	log.Info().Msg("Ingest service started successfully")

	err = svc.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("Received shutdown signal, shutting down gracefully...")
	return svc.Stop()
}

// ingestFiles ingests each file once; a failing file does not stop the others
func ingestFiles(ctx context.Context, svc *service.IngestService, files []string, force bool) error {
	var errs []error
	for _, path := range files {
		m, err := svc.IngestFile(ctx, path, force)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if m.Duplicate {
			fmt.Printf("%s: already ingested (upload %s), use -force to re-ingest\n", path, m.UploadID)
			continue
		}
		fmt.Printf("%s: %d records written (upload %s)\n", path, m.RecordsWritten, m.UploadID)
	}
	return errors.Join(errs...)
}

// buildSinks creates the configured record writers
// The returned close function flushes the writers before closing their connections
func buildSinks(ctx context.Context, cfg *config.Config) (*writer.MultiWriter, func(), error) {
	var (
		writers []writer.RecordWriter
		closers []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Error().Err(err).Msg("Error during shutdown")
			}
		}
	}

	if cfg.ClickHouseEnabled {
		client, err := clickhouse.NewClient(ctx, clickhouse.Options{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
			Retry:    cfg.Retry(),
		})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, client.Close)

		chWriter := writer.NewClickHouseWriter(client, writer.BatchConfig{
			MaxSize:             cfg.BatchSize,
			EnableDeduplication: cfg.ClickHouseDedup,
		})
		if err := chWriter.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		writers = append(writers, chWriter)
		closers = append(closers, chWriter.Close)
	}

	if cfg.CSVPath != "" {
		csvWriter := writer.NewCSVWriter(cfg.CSVPath)
		writers = append(writers, csvWriter)
		closers = append(closers, csvWriter.Close)
	}

	if cfg.RedisAddr != "" {
		redisWriter, err := writer.NewRedisWriter(ctx, writer.RedisOptions{
			Addr:  cfg.RedisAddr,
			DB:    cfg.RedisDB,
			Keep:  cfg.RedisKeep,
			Retry: cfg.Retry(),
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		writers = append(writers, redisWriter)
		closers = append(closers, redisWriter.Close)
	}

	log.Info().Int("sinks", len(writers)).Msg("Record sinks ready")

	return writer.NewMultiWriter(writers...), closeAll, nil
}
