package domain

import "time"

// IngestMetrics represents ingest statistics for a single log file
type IngestMetrics struct {
	Timestamp        time.Time
	UploadID         string
	FilePath         string // Full path to the ingested file
	FileName         string // Just filename for easier queries
	FileDigest       string // sha256 of file contents
	FileSizeBytes    uint64
	LinesRead        uint64
	LinesMatched     uint64
	ParseFailures    uint64 // Captures that did not parse as float
	RecordsExtracted uint64
	RecordsWritten   uint64
	Duplicate        bool // File was already in the ledger and skipped
	StartTime        time.Time
	EndTime          time.Time
	ErrorCount       uint32

	ParsingTimeMs    uint64 // Reading + extraction
	WritingTimeMs    uint64 // Flushing sinks
	RecordsPerSecond float64
}
