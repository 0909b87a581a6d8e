package domain

import "time"

// Outcome classifies the terminal result of one publish attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeSkipped Outcome = "SKIPPED"
	OutcomeStandby Outcome = "STANDBY"
)

// Cycle-level status values.
const (
	CycleCompleted    = "COMPLETED"
	CycleStandby      = "STANDBY"      // no slot in window
	CycleAllProcessed = "ALL_PROCESSED" // matches existed but all were filtered out
)

// CycleReport aggregates the result of one scheduler invocation. Every
// candidate match ends up in Outcomes under exactly one identifier
// ("<language>" for pre-send skips/failures, "<language>/<transport>" per
// send attempt).
type CycleReport struct {
	Status    string             `json:"status"`
	Forced    bool               `json:"forced"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
	Outcomes  map[string]Outcome `json:"outcomes"`
	Reasons   map[string]string  `json:"reasons,omitempty"`
	Sent      int                `json:"sent"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
}

// NewCycleReport returns an empty report started at the given instant.
func NewCycleReport(startedAt time.Time, forced bool) *CycleReport {
	return &CycleReport{
		Status:    CycleStandby,
		Forced:    forced,
		StartedAt: startedAt,
		Outcomes:  make(map[string]Outcome),
		Reasons:   make(map[string]string),
	}
}

// Record sets the outcome for an identifier and bumps the matching counter.
func (r *CycleReport) Record(id string, outcome Outcome, reason string) {
	r.Outcomes[id] = outcome
	if reason != "" {
		r.Reasons[id] = reason
	}
	switch outcome {
	case OutcomeSuccess:
		r.Sent++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}
