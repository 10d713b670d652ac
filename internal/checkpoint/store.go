// Package checkpoint persists resumable batch state. Each checkpoint is two
// blobs, progress and results, written, read and deleted together.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// Store is the durable checkpoint backend.
type Store interface {
	Migrate(ctx context.Context) error
	// Load returns nil when no checkpoint exists for batchID.
	Load(ctx context.Context, batchID string) (*model.BatchState, error)
	Save(ctx context.Context, state *model.BatchState) error
	Delete(ctx context.Context, batchID string) error
	Close() error
}

// IOError is a failed checkpoint read or write. It aborts the run.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}

// progress is the first blob: everything except the result rows.
type progress struct {
	BatchID     string                                `json:"batch_id"`
	RunID       string                                `json:"run_id"`
	Processed   []string                              `json:"processed"`
	ErrorCounts map[string]int                        `json:"error_counts"`
	LinkCache   map[string]model.ClassificationRecord `json:"link_cache,omitempty"`
	StartedAt   time.Time                             `json:"started_at"`
	UpdatedAt   time.Time                             `json:"updated_at"`
}

func encode(s *model.BatchState) (progressBlob, resultsBlob []byte, err error) {
	p := progress{
		BatchID:     s.BatchID,
		RunID:       s.RunID,
		Processed:   make([]string, 0, len(s.Processed)),
		ErrorCounts: s.ErrorCounts,
		LinkCache:   s.LinkCache,
		StartedAt:   s.StartedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	for id, done := range s.Processed {
		if done {
			p.Processed = append(p.Processed, id)
		}
	}
	slices.Sort(p.Processed)

	progressBlob, err = json.Marshal(p)
	if err != nil {
		return nil, nil, eris.Wrap(err, "encode progress")
	}
	results := s.Results
	if results == nil {
		results = []model.OutputRow{}
	}
	resultsBlob, err = json.Marshal(results)
	if err != nil {
		return nil, nil, eris.Wrap(err, "encode results")
	}
	return progressBlob, resultsBlob, nil
}

func decode(progressBlob, resultsBlob []byte) (*model.BatchState, error) {
	var p progress
	if err := json.Unmarshal(progressBlob, &p); err != nil {
		return nil, eris.Wrap(err, "decode progress")
	}
	s := model.NewBatchState(p.BatchID, p.RunID)
	for _, id := range p.Processed {
		s.Processed[id] = true
	}
	if p.ErrorCounts != nil {
		s.ErrorCounts = p.ErrorCounts
	}
	s.LinkCache = p.LinkCache
	s.StartedAt = p.StartedAt
	s.UpdatedAt = p.UpdatedAt
	if err := json.Unmarshal(resultsBlob, &s.Results); err != nil {
		return nil, eris.Wrap(err, "decode results")
	}
	return s, nil
}
