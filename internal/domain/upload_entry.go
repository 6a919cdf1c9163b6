package domain

import "time"

// UploadEntry records a log file that has already been ingested
type UploadEntry struct {
	Digest     string    `json:"digest"` // sha256 hex of file contents
	Path       string    `json:"path"`
	SizeBytes  uint64    `json:"size_bytes"`
	Records    uint64    `json:"records"`
	UploadID   string    `json:"upload_id"`
	IngestedAt time.Time `json:"ingested_at"`
}
