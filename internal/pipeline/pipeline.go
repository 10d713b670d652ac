// Package pipeline turns one input record into classified output rows:
// queries, search, then per hit the date check, link cache, fetch, text
// check and question battery.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/arrest-news-cli/internal/classify"
	"github.com/sells-group/arrest-news-cli/internal/linkcache"
	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/internal/monitoring"
	"github.com/sells-group/arrest-news-cli/internal/query"
	"github.com/sells-group/arrest-news-cli/internal/scrape"
)

// Searcher runs one query.
type Searcher interface {
	Search(ctx context.Context, q model.Query) ([]model.SearchHit, error)
}

// TextFetcher fetches article text within a wall-clock bound.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) scrape.Result
}

// Verdicter runs the question battery.
type Verdicter interface {
	Classify(ctx context.Context, text string, rec model.InputRecord, w model.Window) (classify.Verdict, error)
}

// Deps are the collaborators of a Processor.
type Deps struct {
	Generator  *query.Generator
	Searcher   Searcher
	Fetcher    TextFetcher
	Cache      *linkcache.Cache
	Prefilter  classify.Prefilter
	Classifier Verdicter
	Metrics    *monitoring.Metrics
	// ErrorLog receives one line per counted error. Nil discards.
	ErrorLog *zap.Logger
}

// Processor runs the per-record pipeline.
type Processor struct {
	d           Deps
	concurrency int
}

// New creates a processor. concurrency bounds the hits of one query that
// are worked on at once; values below 1 mean serial.
func New(d Deps, concurrency int) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	if d.ErrorLog == nil {
		d.ErrorLog = zap.NewNop()
	}
	return &Processor{d: d, concurrency: concurrency}
}

// RecordResult is everything one record produced.
type RecordResult struct {
	Rows []model.OutputRow
	// Errors are the messages of errors swallowed at a sub-step boundary,
	// in occurrence order.
	Errors []string
}

// Process runs every query of rec. Sub-step failures are recorded in the
// result; only cancellation of ctx is returned as an error.
func (p *Processor) Process(ctx context.Context, rec model.InputRecord) (RecordResult, error) {
	var res RecordResult
	log := zap.L().With(zap.Int("row", rec.Row), zap.String("location", rec.Location()))
	start := time.Now()

	queries, err := p.d.Generator.Generate(rec)
	if err != nil {
		res.Errors = append(res.Errors, p.record("query", err, zap.Int("row", rec.Row)))
		return res, nil
	}

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		hits, err := p.d.Searcher.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Errors = append(res.Errors, p.record("search", err, zap.String("query", q.Text)))
			continue
		}

		rows, errs, err := p.processHits(ctx, rec, q, hits)
		if err != nil {
			return res, err
		}
		res.Rows = append(res.Rows, rows...)
		res.Errors = append(res.Errors, errs...)
	}

	log.Debug("pipeline: record complete",
		zap.Int("rows", len(res.Rows)),
		zap.Int("errors", len(res.Errors)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

type hitOutcome struct {
	row *model.OutputRow
	err string
}

func (p *Processor) processHits(ctx context.Context, rec model.InputRecord, q model.Query, hits []model.SearchHit) ([]model.OutputRow, []string, error) {
	outcomes := make([]hitOutcome, len(hits))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, hit := range hits {
		g.Go(func() error {
			row, err := p.processHit(ctx, rec, q.Window, hit)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				outcomes[i] = hitOutcome{err: p.record("classify", err, zap.String("url", hit.URL))}
				return nil
			}
			outcomes[i] = hitOutcome{row: &row}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var rows []model.OutputRow
	var errs []string
	for _, o := range outcomes {
		switch {
		case o.row != nil:
			rows = append(rows, *o.row)
		case o.err != "":
			errs = append(errs, o.err)
		}
	}
	return rows, errs, nil
}

// processHit classifies one hit. A returned error drops the hit.
func (p *Processor) processHit(ctx context.Context, rec model.InputRecord, w model.Window, hit model.SearchHit) (model.OutputRow, error) {
	row := model.OutputRow{Record: rec, Window: w, Hit: hit}
	emit := func(o model.Outcome, explanation string) (model.OutputRow, error) {
		row.Outcome = o
		row.Explanation = explanation
		p.d.Metrics.Outcome(string(o))
		return row, nil
	}

	if p.d.Prefilter.TooOld(hit) {
		return emit(model.OutcomeInvalid, "")
	}

	if p.d.Cache != nil {
		unlock := p.d.Cache.Lock(hit.URL)
		defer unlock()

		cached, ok, err := p.d.Cache.Lookup(ctx, hit.URL, rec.Location(), w.End)
		switch {
		case err != nil:
			p.d.ErrorLog.Warn("link cache lookup failed", zap.String("url", hit.URL), zap.Error(err))
		case ok:
			if cached.Verdict {
				return emit(model.OutcomeValid, cached.Explanation)
			}
			return emit(model.OutcomeInvalid, cached.Explanation)
		}
	}

	page := p.d.Fetcher.FetchText(ctx, hit.URL)
	if !page.Available() {
		if err := ctx.Err(); err != nil {
			return row, err
		}
		return emit(p.d.Prefilter.Unavailable(hit, rec.StateCode), "")
	}

	if !classify.MentionsState(page.Text, rec.StateCode) {
		return emit(model.OutcomeInvalid, "")
	}

	v, err := p.d.Classifier.Classify(ctx, page.Text, rec, w)
	if err != nil {
		p.d.Metrics.LLMCall("error")
		return row, err
	}
	p.d.Metrics.LLMCall("ok")

	if p.d.Cache != nil {
		if err := p.d.Cache.Update(ctx, hit.URL, rec.Location(), w.End, v.Explanation, v.Valid); err != nil {
			p.d.ErrorLog.Warn("link cache update failed", zap.String("url", hit.URL), zap.Error(err))
		}
	}

	if v.Valid {
		return emit(model.OutcomeValid, v.Explanation)
	}
	return emit(model.OutcomeInvalid, v.Explanation)
}

// record logs err to the error log and returns the message to tally.
func (p *Processor) record(stage string, err error, fields ...zap.Field) string {
	msg := err.Error()
	var mie *query.MalformedInputError
	var se *classify.ServiceError
	switch {
	case errors.As(err, &mie):
		stage = "input"
	case errors.As(err, &se):
		stage = "llm"
	}
	p.d.Metrics.Error(stage)
	p.d.ErrorLog.Error(msg, append(fields, zap.String("stage", stage))...)
	zap.L().Warn("pipeline: step failed", append(fields, zap.String("stage", stage), zap.Error(err))...)
	return msg
}
