package writer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/netspeed/speedlog/internal/domain"
)

// calculateSpeedRecordHash calculates SHA256 hash of a speed record
// Hash covers the record's position in its file, region, timestamp and all metrics.
// Upload id and ingest time are excluded, so re-ingesting a file reproduces the
// same hashes while repeated identical readings in one file stay distinct
func calculateSpeedRecordHash(record *domain.SpeedRecord) string {
	h := sha256.New()

	fmt.Fprintf(h, "%d|", record.Sequence)
	fmt.Fprintf(h, "%s|", record.Region)
	fmt.Fprintf(h, "%s|", record.Timestamp)

	for _, m := range record.Metrics() {
		if m == nil {
			// Distinct from any formatted float
			fmt.Fprint(h, "null|")
			continue
		}
		fmt.Fprintf(h, "%s|", strconv.FormatFloat(*m, 'g', -1, 64))
	}

	return hex.EncodeToString(h.Sum(nil))
}
