package writer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/netspeed/speedlog/internal/domain"
)

func TestRegionKey(t *testing.T) {
	if got := regionKey("US East"); got != "speeds:region:US East" {
		t.Errorf("regionKey() = %q", got)
	}
}

func TestEncodeRedisRecord(t *testing.T) {
	ingested := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	record := &domain.SpeedRecord{
		Region:          "East",
		Timestamp:       "Mon, Jan 1 2024 10:00:00 AM",
		PostTimeSeconds: f(1.5),
		UploadID:        "upload-1",
		Sequence:        3,
		SourceFile:      "/logs/a.log",
		IngestedAt:      ingested,
	}

	data, err := encodeRedisRecord(record)
	if err != nil {
		t.Fatalf("encodeRedisRecord() error = %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	checks := map[string]interface{}{
		"Region":                "East",
		"Timestamp":             "Mon, Jan 1 2024 10:00:00 AM",
		"Post_Time_Seconds":     1.5,
		"Download_Time_Seconds": nil,
		"upload_id":             "upload-1",
		"seq":                   3.0,
		"source_file":           "/logs/a.log",
		"ingested_at":           "2024-01-01T10:00:00Z",
	}
	for key, want := range checks {
		got, ok := fields[key]
		if !ok {
			t.Errorf("missing key %s in %s", key, data)
			continue
		}
		if got != want {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
	if _, ok := fields["UploadID"]; ok {
		t.Errorf("unexpected Go field name in %s", data)
	}
}
