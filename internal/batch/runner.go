// Package batch runs the per-record pipeline over the whole input list with
// periodic checkpoints, so an interrupted run resumes where it stopped.
package batch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/arrest-news-cli/internal/checkpoint"
	"github.com/sells-group/arrest-news-cli/internal/linkcache"
	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/internal/monitoring"
	"github.com/sells-group/arrest-news-cli/internal/pipeline"
	"github.com/sells-group/arrest-news-cli/internal/sink"
)

// State is the runner's lifecycle state.
type State string

const (
	StateIdle          State = "idle"
	StateRunning       State = "running"
	StateCheckpointing State = "checkpointing"
	StateCompleted     State = "completed"
	StateInterrupted   State = "interrupted"
)

// DefaultInterval is the number of processed records between checkpoints.
const DefaultInterval = 100

// RecordProcessor runs the pipeline for one record.
type RecordProcessor interface {
	Process(ctx context.Context, rec model.InputRecord) (pipeline.RecordResult, error)
}

// Options configures a Runner.
type Options struct {
	BatchID   string
	OutputDir string
	Interval  int
	// Limit caps the records processed by this run. Zero means no cap.
	Limit int
	// PersistCache stores the link cache with each checkpoint and restores
	// it on resume.
	PersistCache bool
	// ExportXLSX writes a timestamped workbook on completion.
	ExportXLSX bool
	Metrics    *monitoring.Metrics
	Now        func() time.Time
}

// Summary describes a finished run.
type Summary struct {
	BatchID          string
	RunID            string
	Resumed          bool
	Processed        int
	ProcessedThisRun int
	Counts           sink.Counts
	Errors           int
	ErrorSummaryPath string
	XLSXPath         string
	Completed        bool
}

// Runner drives the batch state machine.
type Runner struct {
	store checkpoint.Store
	proc  RecordProcessor
	cache *linkcache.Cache
	opts  Options

	mu       sync.RWMutex
	state    State
	progress Progress
}

// NewRunner creates a runner. cache may be nil.
func NewRunner(store checkpoint.Store, proc RecordProcessor, cache *linkcache.Cache, opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	return &Runner{
		store: store,
		proc:  proc,
		cache: cache,
		opts:  opts,
		state: StateIdle,
		progress: Progress{
			BatchID: opts.BatchID,
			State:   StateIdle,
			Results: map[model.Outcome]int{},
		},
	}
}

// Run processes records in order, skipping those already processed in this
// lineage. On cancellation, a panic or any other failure the current state
// is persisted before the condition propagates.
func (r *Runner) Run(ctx context.Context, records []model.InputRecord) (summary *Summary, err error) {
	log := zap.L().With(zap.String("batch_id", r.opts.BatchID))

	state, resumed, err := r.restore(ctx)
	if err != nil {
		return nil, err
	}
	summary = &Summary{BatchID: state.BatchID, RunID: state.RunID, Resumed: resumed}
	r.begin(state, len(records))

	defer func() {
		if p := recover(); p != nil {
			r.interrupt(ctx, state, eris.Errorf("batch: panic: %v", p))
			panic(p)
		}
		if err != nil && r.State() != StateCompleted {
			r.interrupt(ctx, state, err)
		}
	}()

	log.Info("batch: running",
		zap.String("run_id", state.RunID),
		zap.Bool("resumed", resumed),
		zap.Int("records", len(records)),
		zap.Int("already_processed", len(state.Processed)),
	)

	for _, rec := range records {
		id := rec.ID()
		if state.Processed[id] {
			continue
		}
		if r.opts.Limit > 0 && summary.ProcessedThisRun >= r.opts.Limit {
			log.Info("batch: limit reached", zap.Int("limit", r.opts.Limit))
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := r.proc.Process(ctx, rec)
		if err != nil {
			return summary, err
		}

		r.apply(state, id, res)
		summary.ProcessedThisRun++

		if len(state.Processed)%r.opts.Interval == 0 {
			if err := r.checkpoint(ctx, state, "interval"); err != nil {
				return summary, err
			}
			log.Info("batch: progress",
				zap.Int("processed", len(state.Processed)),
				zap.Int("total", len(records)),
				zap.Int("results", len(state.Results)),
				zap.Int("errors", state.TotalErrors()),
				zap.Any("error_counts", state.ErrorCounts),
			)
		}
	}

	summary.Processed = len(state.Processed)
	summary.Errors = state.TotalErrors()

	if !r.complete(state, records) {
		// Limited run: leave a checkpoint so the next run continues.
		if err := r.checkpoint(ctx, state, "partial"); err != nil {
			return summary, err
		}
		r.setState(StateIdle)
		return summary, nil
	}

	if err := r.finish(ctx, state, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *Runner) restore(ctx context.Context) (*model.BatchState, bool, error) {
	state, err := r.store.Load(ctx, r.opts.BatchID)
	if err != nil {
		return nil, false, err
	}
	if state == nil {
		return model.NewBatchState(r.opts.BatchID, uuid.NewString()), false, nil
	}
	if state.ErrorCounts == nil {
		state.ErrorCounts = make(map[string]int)
	}
	if state.Processed == nil {
		state.Processed = make(map[string]bool)
	}
	if r.opts.PersistCache && r.cache != nil {
		r.cache.Restore(state.LinkCache)
	}
	zap.L().Info("batch: resuming from checkpoint",
		zap.String("run_id", state.RunID),
		zap.Int("processed", len(state.Processed)),
		zap.Int("results", len(state.Results)),
	)
	return state, true, nil
}

func (r *Runner) apply(state *model.BatchState, id string, res pipeline.RecordResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state.Results = append(state.Results, res.Rows...)
	for _, msg := range res.Errors {
		state.ErrorCounts[msg]++
	}
	state.Processed[id] = true

	r.progress.Processed = len(state.Processed)
	r.progress.Errors += len(res.Errors)
	for _, row := range res.Rows {
		r.progress.Results[row.Outcome]++
	}
	if len(res.Errors) > 0 {
		r.opts.Metrics.RecordFailed()
	}
	r.opts.Metrics.RecordProcessed()
}

// checkpoint persists state. A failure is fatal to the run.
func (r *Runner) checkpoint(ctx context.Context, state *model.BatchState, kind string) error {
	r.setState(StateCheckpointing)
	if err := r.save(ctx, state, kind); err != nil {
		return err
	}
	r.setState(StateRunning)
	return nil
}

func (r *Runner) save(ctx context.Context, state *model.BatchState, kind string) error {
	state.UpdatedAt = r.opts.Now().UTC()
	if r.opts.PersistCache && r.cache != nil {
		state.LinkCache = r.cache.Snapshot()
	}
	if err := r.store.Save(ctx, state); err != nil {
		r.opts.Metrics.Checkpoint("failed")
		return err
	}
	r.opts.Metrics.Checkpoint(kind)

	r.mu.Lock()
	r.progress.LastCheckpoint = state.UpdatedAt
	r.mu.Unlock()
	return nil
}

// interrupt persists state on the way out. The triggering condition is
// propagated by the caller.
func (r *Runner) interrupt(ctx context.Context, state *model.BatchState, cause error) {
	r.setState(StateInterrupted)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := r.save(saveCtx, state, "interrupt"); err != nil {
		zap.L().Error("batch: could not persist state on interruption", zap.Error(err))
	}

	summaryPath, err := sink.WriteErrorSummary(r.opts.OutputDir, state.RunID, state.ErrorCounts)
	if err != nil {
		zap.L().Warn("batch: could not write error summary", zap.Error(err))
	}
	zap.L().Error("batch: interrupted",
		zap.Error(cause),
		zap.Int("processed", len(state.Processed)),
		zap.String("error_log", filepath.Join(r.opts.OutputDir, sink.ErrorLogFile)),
		zap.String("error_summary", summaryPath),
	)
}

// finish writes the final outputs and removes the checkpoint.
func (r *Runner) finish(ctx context.Context, state *model.BatchState, summary *Summary) error {
	counts, err := sink.WriteResults(r.opts.OutputDir, state.Results)
	if err != nil {
		return eris.Wrap(err, "batch: write results")
	}
	summary.Counts = counts

	if summary.ErrorSummaryPath, err = sink.WriteErrorSummary(r.opts.OutputDir, state.RunID, state.ErrorCounts); err != nil {
		return eris.Wrap(err, "batch: write error summary")
	}
	if r.opts.ExportXLSX {
		if summary.XLSXPath, err = sink.ExportXLSX(r.opts.OutputDir, state.Results, r.opts.Now()); err != nil {
			return eris.Wrap(err, "batch: export xlsx")
		}
	}

	if err := r.store.Delete(ctx, state.BatchID); err != nil {
		return err
	}
	r.opts.Metrics.Checkpoint("deleted")
	r.setState(StateCompleted)
	summary.Completed = true

	zap.L().Info("batch: completed",
		zap.String("run_id", state.RunID),
		zap.Int("processed", len(state.Processed)),
		zap.Int("valid", counts[model.OutcomeValid]),
		zap.Int("invalid", counts[model.OutcomeInvalid]),
		zap.Int("manual_review", counts[model.OutcomeManualReview]),
		zap.Int("errors", summary.Errors),
		zap.String("output_dir", r.opts.OutputDir),
	)
	return nil
}

func (r *Runner) complete(state *model.BatchState, records []model.InputRecord) bool {
	for _, rec := range records {
		if !state.Processed[rec.ID()] {
			return false
		}
	}
	return true
}

func (r *Runner) begin(state *model.BatchState, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateRunning
	r.progress = Progress{
		BatchID:   state.BatchID,
		RunID:     state.RunID,
		State:     StateRunning,
		Total:     total,
		Processed: len(state.Processed),
		Errors:    state.TotalErrors(),
		Results:   make(map[model.Outcome]int, len(model.Outcomes)),
		StartedAt: state.StartedAt,
	}
	for o, n := range state.CountByOutcome() {
		r.progress.Results[o] = n
	}
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.progress.State = s
	r.mu.Unlock()
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}
