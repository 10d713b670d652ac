// Package sink writes classified results, the error log and the error
// summary to the output directory.
package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// Output file names.
const (
	ValidFile        = "valid_results.csv"
	InvalidFile      = "invalid_results.csv"
	ManualReviewFile = "manual_check_results.csv"
	ErrorLogFile     = "error_log.txt"
	ErrorSummaryFile = "error_summary.json"
)

// Headers per sink.
var (
	ValidHeader = []string{
		"County", "State", "Arrest_Date", "Start_Date_Param", "End_Date_Param",
		"Article_Title", "Article_Link", "Article_Date", "LLM_Analysis",
		"StateCountyFIPS", "FIPSState", "FIPSCounty",
	}
	InvalidHeader      = []string{"County", "State", "Title", "Link", "Date", "LLM_Analysis"}
	ManualReviewHeader = []string{"County", "State", "Title", "Link", "Date"}
)

// FileFor returns the sink file name for an outcome.
func FileFor(o model.Outcome) string {
	switch o {
	case model.OutcomeValid:
		return ValidFile
	case model.OutcomeManualReview:
		return ManualReviewFile
	default:
		return InvalidFile
	}
}

// HeaderFor returns the header row for an outcome.
func HeaderFor(o model.Outcome) []string {
	switch o {
	case model.OutcomeValid:
		return ValidHeader
	case model.OutcomeManualReview:
		return ManualReviewHeader
	default:
		return InvalidHeader
	}
}

// Row renders a result in its sink's column layout.
func Row(r model.OutputRow) []string {
	switch r.Outcome {
	case model.OutcomeValid:
		return []string{
			r.Record.County, r.Record.StateCode, r.Window.ArrestParam(),
			r.Window.StartParam(), r.Window.EndParam(),
			r.Hit.Title, r.Hit.URL, r.Hit.DateColumn(), r.Explanation,
			r.Record.CombinedFIPS, r.Record.StateFIPS, r.Record.CountyFIPS,
		}
	case model.OutcomeManualReview:
		return []string{r.Record.County, r.Record.StateCode, r.Hit.Title, r.Hit.URL, r.Hit.DateColumn()}
	default:
		return []string{r.Record.County, r.Record.StateCode, r.Hit.Title, r.Hit.URL, r.Hit.DateColumn(), r.Explanation}
	}
}

// Counts is the number of rows written per outcome.
type Counts map[model.Outcome]int

// Total sums all sinks.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// WriteResults rewrites the three result files in dir from rows, keeping
// row order. Each file always gets its header.
func WriteResults(dir string, rows []model.OutputRow) (Counts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "sink: create %s", dir)
	}

	byOutcome := make(map[model.Outcome][][]string, len(model.Outcomes))
	for _, r := range rows {
		byOutcome[r.Outcome] = append(byOutcome[r.Outcome], Row(r))
	}

	counts := make(Counts, len(model.Outcomes))
	for _, o := range model.Outcomes {
		path := filepath.Join(dir, FileFor(o))
		if err := writeCSV(path, HeaderFor(o), byOutcome[o]); err != nil {
			return nil, err
		}
		counts[o] = len(byOutcome[o])
	}
	return counts, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "sink: create %s", tmp)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "sink: write header %s", path)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "sink: write rows %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "sink: close %s", tmp)
	}
	return eris.Wrapf(os.Rename(tmp, path), "sink: rename %s", path)
}
