package model

import (
	"time"
)

// Outcome is the three-way label assigned to every search hit.
type Outcome string

const (
	OutcomeValid        Outcome = "valid"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeManualReview Outcome = "manual_review"
)

// Outcomes lists every outcome in sink order.
var Outcomes = []Outcome{OutcomeValid, OutcomeInvalid, OutcomeManualReview}

// OutputRow is a classified hit together with the provenance its sink needs.
type OutputRow struct {
	Outcome     Outcome     `json:"outcome"`
	Record      InputRecord `json:"record"`
	Window      Window      `json:"window"`
	Hit         SearchHit   `json:"hit"`
	Explanation string      `json:"explanation,omitempty"`
}

// ClassificationRecord is the link cache entry for one URL.
type ClassificationRecord struct {
	LastLocation  string    `json:"last_location"`
	LastWindowEnd time.Time `json:"last_window_end"`
	Explanation   string    `json:"explanation"`
	Verdict       bool      `json:"verdict"`
}

// BatchState is the resumable progress of one batch lineage.
type BatchState struct {
	BatchID     string                          `json:"batch_id"`
	RunID       string                          `json:"run_id"`
	Processed   map[string]bool                 `json:"processed"`
	Results     []OutputRow                     `json:"results"`
	ErrorCounts map[string]int                  `json:"error_counts"`
	LinkCache   map[string]ClassificationRecord `json:"link_cache,omitempty"`
	StartedAt   time.Time                       `json:"started_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`
}

// NewBatchState creates an empty state for a fresh lineage.
func NewBatchState(batchID, runID string) *BatchState {
	now := time.Now().UTC()
	return &BatchState{
		BatchID:     batchID,
		RunID:       runID,
		Processed:   make(map[string]bool),
		ErrorCounts: make(map[string]int),
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// CountByOutcome tallies accumulated results per outcome.
func (s *BatchState) CountByOutcome() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, r := range s.Results {
		counts[r.Outcome]++
	}
	return counts
}

// TotalErrors sums the error tallies.
func (s *BatchState) TotalErrors() int {
	n := 0
	for _, c := range s.ErrorCounts {
		n += c
	}
	return n
}
