package batch

import (
	"maps"
	"time"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// Progress is a point-in-time view of a run for the status endpoint.
type Progress struct {
	BatchID        string                `json:"batch_id"`
	RunID          string                `json:"run_id"`
	State          State                 `json:"state"`
	Total          int                   `json:"total"`
	Processed      int                   `json:"processed"`
	Errors         int                   `json:"errors"`
	Results        map[model.Outcome]int `json:"results"`
	StartedAt      time.Time             `json:"started_at"`
	LastCheckpoint time.Time             `json:"last_checkpoint,omitzero"`
}

// Progress returns a copy of the current progress.
func (r *Runner) Progress() Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.progress
	p.Results = maps.Clone(r.progress.Results)
	return p
}
