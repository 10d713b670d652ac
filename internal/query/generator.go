// Package query turns input records into search queries and date windows.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// MalformedInputError reports an input record that cannot be turned into a
// query. The record is skipped and counted.
type MalformedInputError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("query: malformed input row %d: %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
}

// Generator builds queries from templates. Templates may reference {county},
// {state}, {state_name}, {start} and {end}.
type Generator struct {
	templates  []string
	daysBefore int
	daysAfter  int
}

// NewGenerator creates a generator. An empty template list falls back to a
// single default query.
func NewGenerator(templates []string, daysBefore, daysAfter int) *Generator {
	if len(templates) == 0 {
		templates = []string{"Immigration Raid/Arrest, {county}, {state}"}
	}
	return &Generator{templates: templates, daysBefore: daysBefore, daysAfter: daysAfter}
}

// Window computes the search window around the record's arrest date.
func (g *Generator) Window(rec model.InputRecord) (model.Window, error) {
	arrest, err := ParseDate(rec.ArrestDate)
	if err != nil {
		return model.Window{}, &MalformedInputError{
			Row:    rec.Row,
			Field:  "arrestdate",
			Value:  rec.ArrestDate,
			Reason: err.Error(),
		}
	}
	return model.Window{
		Arrest: arrest,
		Start:  arrest.AddDate(0, 0, -g.daysBefore),
		End:    arrest.AddDate(0, 0, g.daysAfter),
	}, nil
}

// Generate returns one query per template, in template order.
func (g *Generator) Generate(rec model.InputRecord) ([]model.Query, error) {
	if strings.TrimSpace(rec.County) == "" {
		return nil, &MalformedInputError{Row: rec.Row, Field: "CountyName", Value: rec.County, Reason: "empty"}
	}
	if strings.TrimSpace(rec.StateCode) == "" {
		return nil, &MalformedInputError{Row: rec.Row, Field: "ST", Value: rec.StateCode, Reason: "empty"}
	}

	w, err := g.Window(rec)
	if err != nil {
		return nil, err
	}

	r := strings.NewReplacer(
		"{county}", rec.County,
		"{state}", rec.StateCode,
		"{state_name}", StateName(rec.StateCode),
		"{start}", w.StartParam(),
		"{end}", w.EndParam(),
	)

	queries := make([]model.Query, 0, len(g.templates))
	for _, tmpl := range g.templates {
		queries = append(queries, model.Query{
			Text:    r.Replace(tmpl),
			Pattern: tmpl,
			Window:  w,
		})
	}
	return queries, nil
}

var dateLayouts = []string{"1/2/2006", "2006-01-02", "01-02-2006"}

// ParseDate parses an input arrest date. Two-digit years are read as 20yy.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, eris.New("empty date")
	}

	if parts := strings.Split(s, "/"); len(parts) == 3 && len(parts[2]) == 2 {
		s = parts[0] + "/" + parts[1] + "/20" + parts[2]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.New("unrecognized date format")
}
