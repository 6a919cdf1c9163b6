package domain

import "time"

// SpeedColumns lists the persisted columns of a speed record, in storage order
var SpeedColumns = []string{
	"Region",
	"Timestamp",
	"Post_Time_Seconds",
	"Download_Time_Seconds",
	"Post_Rate_Files_per_Sec",
	"Download_Rate_Files_per_Sec",
	"Post_Rate_MB_per_Sec",
	"Post_Rate_Mbits_per_Sec",
	"Download_Rate_MB_per_Sec",
	"Download_Rate_Mbits_per_Sec",
}

// SpeedRecord represents one measurement window for one region at one timestamp
// Metric fields are nil when the log did not report them
type SpeedRecord struct {
	Region    string `json:"Region"`
	Timestamp string `json:"Timestamp"` // verbatim from the log, never reformatted

	PostTimeSeconds         *float64 `json:"Post_Time_Seconds"`
	DownloadTimeSeconds     *float64 `json:"Download_Time_Seconds"`
	PostRateFilesPerSec     *float64 `json:"Post_Rate_Files_per_Sec"`
	DownloadRateFilesPerSec *float64 `json:"Download_Rate_Files_per_Sec"`
	PostRateMBPerSec        *float64 `json:"Post_Rate_MB_per_Sec"`
	PostRateMbitsPerSec     *float64 `json:"Post_Rate_Mbits_per_Sec"`
	DownloadRateMBPerSec    *float64 `json:"Download_Rate_MB_per_Sec"`
	DownloadRateMbitsPerSec *float64 `json:"Download_Rate_Mbits_per_Sec"`

	// Ingest metadata, set by the ingest service (not by the extractor)
	UploadID   string    `json:"-"`
	SourceFile string    `json:"-"`
	Sequence   uint64    `json:"-"` // Position of the record within its upload, from 1
	IngestedAt time.Time `json:"-"`
}

// Metrics returns the eight metric slots in column order
func (r *SpeedRecord) Metrics() [8]*float64 {
	return [8]*float64{
		r.PostTimeSeconds,
		r.DownloadTimeSeconds,
		r.PostRateFilesPerSec,
		r.DownloadRateFilesPerSec,
		r.PostRateMBPerSec,
		r.PostRateMbitsPerSec,
		r.DownloadRateMBPerSec,
		r.DownloadRateMbitsPerSec,
	}
}

// HasMetrics reports whether at least one metric is set
func (r *SpeedRecord) HasMetrics() bool {
	for _, m := range r.Metrics() {
		if m != nil {
			return true
		}
	}
	return false
}

// PrimaryComplete reports whether post/download time and both files/sec rates are set
func (r *SpeedRecord) PrimaryComplete() bool {
	return r.PostTimeSeconds != nil &&
		r.DownloadTimeSeconds != nil &&
		r.PostRateFilesPerSec != nil &&
		r.DownloadRateFilesPerSec != nil
}
