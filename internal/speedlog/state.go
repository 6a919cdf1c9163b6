package speedlog

import "github.com/netspeed/speedlog/internal/domain"

// workingState is the record under construction
// Transitions return a new value and never mutate the receiver:
//   - region survives every transition until a new region header
//   - timestamp survives a primary-complete flush, is replaced on a timestamp change
//   - metrics never survive a flush
type workingState struct {
	rec domain.SpeedRecord
}

// withRegion returns the state with a new sticky region
func (s workingState) withRegion(region string) workingState {
	s.rec.Region = region
	return s
}

// withTimestamp applies the timestamp-advance rule
// If the state already holds a different timestamp, the old state is returned as done
// and the next state starts fresh under ts with the same region
func (s workingState) withTimestamp(ts string) (next workingState, done *workingState) {
	if s.rec.Timestamp == "" || s.rec.Timestamp == ts {
		s.rec.Timestamp = ts
		return s, nil
	}

	finished := s
	return workingState{rec: domain.SpeedRecord{
		Region:    s.rec.Region,
		Timestamp: ts,
	}}, &finished
}

// cleared drops all metrics, keeping region and timestamp
func (s workingState) cleared() workingState {
	return workingState{rec: domain.SpeedRecord{
		Region:    s.rec.Region,
		Timestamp: s.rec.Timestamp,
	}}
}

// record returns the record to emit, ok is false when no metric is set
func (s workingState) record() (domain.SpeedRecord, bool) {
	if !s.rec.HasMetrics() {
		return domain.SpeedRecord{}, false
	}
	return s.rec, true
}
