package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/netspeed/speedlog/internal/domain"
	"github.com/netspeed/speedlog/internal/speedlog"
	"github.com/netspeed/speedlog/internal/writer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	format := flag.String("format", "csv", "output format: csv or json")
	noHeader := flag.Bool("no-header", false, "omit the CSV header row")
	verbose := flag.Bool("v", false, "log extraction details to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: extract [-format csv|json] [-no-header] <log file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Records go to stdout, diagnostics to stderr
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(flag.Arg(0), *format, !*noHeader); err != nil {
		log.Error().Err(err).Msg("Extraction failed")
		os.Exit(1)
	}
}

func run(path, format string, header bool) error {
	var (
		emit  speedlog.EmitFunc
		flush func() error
	)

	switch format {
	case "csv":
		enc := writer.NewCSVEncoder(os.Stdout, header)
		emit = func(record domain.SpeedRecord) error {
			return enc.Encode(&record)
		}
		flush = enc.Flush
	case "json":
		enc := json.NewEncoder(os.Stdout)
		emit = func(record domain.SpeedRecord) error {
			return enc.Encode(record)
		}
		flush = func() error { return nil }
	default:
		return fmt.Errorf("unknown format %q (want csv or json)", format)
	}

	rc, err := speedlog.OpenLog(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	stats, err := speedlog.NewExtractor().ExtractReader(context.Background(), rc, emit)
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	log.Info().
		Str("file", path).
		Uint64("lines_read", stats.LinesRead).
		Uint64("records", stats.RecordsEmitted).
		Uint64("parse_failures", stats.ParseFailures).
		Msg("Extraction completed")

	return nil
}
