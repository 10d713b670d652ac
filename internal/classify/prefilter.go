// Package classify decides whether a search hit documents an immigration
// arrest near a given county and date.
package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/internal/query"
)

// DefaultCutoffYear is the earliest publication year worth classifying.
const DefaultCutoffYear = 2014

var fold = cases.Fold()

// Prefilter holds the cheap checks that run before any model call.
type Prefilter struct {
	CutoffYear int
}

// NewPrefilter creates a prefilter. A non-positive cutoff uses the default.
func NewPrefilter(cutoffYear int) Prefilter {
	if cutoffYear <= 0 {
		cutoffYear = DefaultCutoffYear
	}
	return Prefilter{CutoffYear: cutoffYear}
}

// TooOld reports whether the hit's publication year is known and before the
// cutoff.
func (p Prefilter) TooOld(hit model.SearchHit) bool {
	year, ok := hit.PublishedYear()
	return ok && year < p.CutoffYear
}

// Unavailable routes a hit whose text could not be fetched. Recent hits and
// hits whose title names the state go to manual review; the rest are invalid.
func (p Prefilter) Unavailable(hit model.SearchHit, stateCode string) model.Outcome {
	if year, ok := hit.PublishedYear(); ok && year >= p.CutoffYear {
		return model.OutcomeManualReview
	}
	if MentionsState(hit.Title, stateCode) {
		return model.OutcomeManualReview
	}
	return model.OutcomeInvalid
}

// MentionsState reports whether text names the state by full name or by its
// two-letter code. The code only matches as a standalone word.
func MentionsState(text, stateCode string) bool {
	if text == "" {
		return false
	}
	folded := fold.String(text)
	if name := query.StateName(stateCode); name != "" && strings.Contains(folded, fold.String(name)) {
		return true
	}
	code := fold.String(strings.TrimSpace(stateCode))
	if code == "" {
		return false
	}
	return containsWord(folded, code)
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		if boundary(s, start-1) && boundary(s, end) {
			return true
		}
		i = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
