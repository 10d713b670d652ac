package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the MM/DD/YYYY layout used in search parameters and output columns.
const DateLayout = "01/02/2006"

// InputRecord is one abnormal-arrest-day row from the input CSV.
type InputRecord struct {
	Row          int    `json:"row"`
	ArrestDate   string `json:"arrest_date"`
	County       string `json:"county"`
	StateCode    string `json:"state_code"`
	CombinedFIPS string `json:"combined_fips"`
	StateFIPS    string `json:"state_fips"`
	CountyFIPS   string `json:"county_fips"`
}

// ID identifies the source row. Identical rows at different positions are
// distinct records.
func (r InputRecord) ID() string {
	return strings.ToLower(fmt.Sprintf("%d|%s|%s|%s|%s",
		r.Row,
		strings.TrimSpace(r.CombinedFIPS),
		strings.TrimSpace(r.County),
		strings.TrimSpace(r.StateCode),
		strings.TrimSpace(r.ArrestDate),
	))
}

// Location is the "{county}, {state}" string used in prompts and as the
// link cache location key.
func (r InputRecord) Location() string {
	return fmt.Sprintf("%s, %s", r.County, r.StateCode)
}

// Window is the inclusive date range an article's event must fall within.
type Window struct {
	Arrest time.Time `json:"arrest"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// StartParam formats the window start as MM/DD/YYYY.
func (w Window) StartParam() string { return w.Start.Format(DateLayout) }

// EndParam formats the window end as MM/DD/YYYY.
func (w Window) EndParam() string { return w.End.Format(DateLayout) }

// ArrestParam formats the arrest date as MM/DD/YYYY.
func (w Window) ArrestParam() string { return w.Arrest.Format(DateLayout) }

// Query is one search query generated for an input record.
type Query struct {
	Text    string `json:"text"`
	Pattern string `json:"pattern"`
	Window  Window `json:"window"`
}

// SearchHit is one candidate article returned by the search service.
type SearchHit struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	PublishedRaw  string     `json:"published_raw,omitempty"`
	Published     *time.Time `json:"published,omitempty"`
	SourceQuery   string     `json:"source_query"`
	SearchPattern string     `json:"search_pattern"`
}

// PublishedYear returns the publication year and whether it is known.
func (h SearchHit) PublishedYear() (int, bool) {
	if h.Published == nil {
		return 0, false
	}
	return h.Published.Year(), true
}

// DateColumn is the value written to the Date / Article_Date columns.
func (h SearchHit) DateColumn() string {
	if h.PublishedRaw != "" {
		return h.PublishedRaw
	}
	if h.Published != nil {
		return h.Published.Format(DateLayout)
	}
	return "N/A"
}
