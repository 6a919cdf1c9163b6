package speedlog

import (
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Patterns holds the compiled line patterns of a speed-test log
// A Patterns value is immutable once built and may be shared between extractors
type Patterns struct {
	Region            *regexp.Regexp // ==========Beginning test to East Database==========
	Timestamp         *regexp.Regexp // Mon, Jan 2 2024 10:00:00 AM
	PostTime          *regexp.Regexp // Seconds to Post File: 1.5s
	DownloadTime      *regexp.Regexp // Seconds to Download File: 2.0s
	PostRateFiles     *regexp.Regexp // Post Directory rate: 10.0 files/sec
	DownloadRateFiles *regexp.Regexp // Download Directory rate: 12.0 files/sec
	Throughput        *regexp.Regexp // 5.0 MB/sec, 40.0 Mbits/sec (line after a files/sec rate)
}

// DefaultPatterns returns the patterns emitted by the speed-test tool
func DefaultPatterns() *Patterns {
	return &Patterns{
		Region:            regexp.MustCompile(`==========Beginning test to (.+?) Database==========`),
		Timestamp:         regexp.MustCompile(`\w+,\s\w+\s\d+,?\s\d+\s[\d:]+(?:\s[AP]M)?`),
		PostTime:          regexp.MustCompile(`Seconds to Post File: ([\d.]+)s`),
		DownloadTime:      regexp.MustCompile(`Seconds to Download File: ([\d.]+)s`),
		PostRateFiles:     regexp.MustCompile(`Post Directory rate: ([\d.]+) files/sec`),
		DownloadRateFiles: regexp.MustCompile(`Download Directory rate: ([\d.]+) files/sec`),
		Throughput:        regexp.MustCompile(`([\d.]+) MB/sec, ([\d.]+) Mbits/sec`),
	}
}

// parseMetric parses a captured number
// Returns nil when the capture is not a valid float (e.g. "1.2.3" or ".")
func parseMetric(capture string) *float64 {
	v, err := strconv.ParseFloat(capture, 64)
	if err != nil {
		log.Debug().
			Err(err).
			Str("capture", capture).
			Msg("Captured metric is not a number, leaving field empty")
		return nil
	}
	return &v
}
