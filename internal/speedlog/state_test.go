package speedlog

import (
	"testing"

	"github.com/netspeed/speedlog/internal/domain"
)

func TestWorkingState_WithTimestamp(t *testing.T) {
	base := workingState{rec: domain.SpeedRecord{
		Region:          "East",
		Timestamp:       ts1,
		PostTimeSeconds: f(1),
	}}

	tests := []struct {
		name     string
		state    workingState
		ts       string
		wantDone bool
		checks   func(t *testing.T, next workingState, done *workingState)
	}{
		{
			name:     "first timestamp is adopted",
			state:    workingState{rec: domain.SpeedRecord{Region: "East", PostTimeSeconds: f(1)}},
			ts:       ts1,
			wantDone: false,
			checks: func(t *testing.T, next workingState, _ *workingState) {
				if next.rec.Timestamp != ts1 {
					t.Errorf("expected Timestamp=%q, got %q", ts1, next.rec.Timestamp)
				}
				assertMetric(t, "PostTimeSeconds", next.rec.PostTimeSeconds, f(1))
			},
		},
		{
			name:     "same timestamp keeps metrics",
			state:    base,
			ts:       ts1,
			wantDone: false,
			checks: func(t *testing.T, next workingState, _ *workingState) {
				assertMetric(t, "PostTimeSeconds", next.rec.PostTimeSeconds, f(1))
			},
		},
		{
			name:     "different timestamp finishes the record",
			state:    base,
			ts:       ts2,
			wantDone: true,
			checks: func(t *testing.T, next workingState, done *workingState) {
				if done.rec.Timestamp != ts1 {
					t.Errorf("expected done Timestamp=%q, got %q", ts1, done.rec.Timestamp)
				}
				assertMetric(t, "done.PostTimeSeconds", done.rec.PostTimeSeconds, f(1))

				if next.rec.Region != "East" || next.rec.Timestamp != ts2 {
					t.Errorf("expected next East/%q, got %q/%q", ts2, next.rec.Region, next.rec.Timestamp)
				}
				if next.rec.HasMetrics() {
					t.Errorf("expected next state to have no metrics")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, done := tt.state.withTimestamp(tt.ts)
			if (done != nil) != tt.wantDone {
				t.Fatalf("withTimestamp() done = %v, wantDone %v", done != nil, tt.wantDone)
			}
			if tt.checks != nil {
				tt.checks(t, next, done)
			}
		})
	}
}

func TestWorkingState_Cleared(t *testing.T) {
	s := workingState{rec: domain.SpeedRecord{
		Region:                  "East",
		Timestamp:               ts1,
		PostTimeSeconds:         f(1),
		DownloadTimeSeconds:     f(2),
		PostRateFilesPerSec:     f(3),
		DownloadRateFilesPerSec: f(4),
		PostRateMBPerSec:        f(5),
		PostRateMbitsPerSec:     f(6),
		DownloadRateMBPerSec:    f(7),
		DownloadRateMbitsPerSec: f(8),
	}}

	cleared := s.cleared()
	if cleared.rec.Region != "East" || cleared.rec.Timestamp != ts1 {
		t.Errorf("expected region and timestamp to survive, got %q/%q", cleared.rec.Region, cleared.rec.Timestamp)
	}
	if cleared.rec.HasMetrics() {
		t.Errorf("expected all metrics cleared")
	}
	// The receiver is not mutated
	if !s.rec.PrimaryComplete() {
		t.Errorf("expected receiver state to keep its metrics")
	}
}

func TestWorkingState_Record(t *testing.T) {
	if _, ok := (workingState{rec: domain.SpeedRecord{Region: "East", Timestamp: ts1}}).record(); ok {
		t.Errorf("expected empty state not to produce a record")
	}

	rec, ok := workingState{rec: domain.SpeedRecord{DownloadRateMbitsPerSec: f(1)}}.record()
	if !ok {
		t.Fatalf("expected a record when one metric is set")
	}
	assertMetric(t, "DownloadRateMbitsPerSec", rec.DownloadRateMbitsPerSec, f(1))
}
