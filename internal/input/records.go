package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// Column headers of the input list. Matching is case-insensitive.
const (
	ColArrestDate   = "arrestdate"
	ColCounty       = "CountyName"
	ColState        = "ST"
	ColCombinedFIPS = "StateCountyFIPS"
	ColStateFIPS    = "FIPSState"
	ColCountyFIPS   = "FIPSCounty"
)

var requiredColumns = []string{ColArrestDate, ColCounty, ColState}

// Read loads every record from a .csv or .xlsx file in file order. Row
// numbers are 1-based and count the header.
func Read(ctx context.Context, path string) ([]model.InputRecord, error) {
	var rows [][]string
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		var err error
		if rows, err = ReadXLSX(path); err != nil {
			return nil, err
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "input: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		rowCh, errCh := StreamCSV(ctx, f)
		for row := range rowCh {
			rows = append(rows, row)
		}
		if err := <-errCh; err != nil {
			return nil, err
		}
	}
	return FromRows(rows)
}

// FromRows maps a header row plus data rows to records. Blank rows are
// skipped.
func FromRows(rows [][]string) ([]model.InputRecord, error) {
	if len(rows) == 0 {
		return nil, eris.New("input: empty file")
	}
	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			return nil, eris.Errorf("input: missing column %q", col)
		}
	}

	get := func(row []string, col string) string {
		i, ok := idx[strings.ToLower(col)]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]model.InputRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		records = append(records, model.InputRecord{
			Row:          n + 2,
			ArrestDate:   get(row, ColArrestDate),
			County:       get(row, ColCounty),
			StateCode:    strings.ToUpper(get(row, ColState)),
			CombinedFIPS: get(row, ColCombinedFIPS),
			StateFIPS:    get(row, ColStateFIPS),
			CountyFIPS:   get(row, ColCountyFIPS),
		})
	}
	return records, nil
}

func blank(row []string) bool {
	for _, f := range row {
		if f != "" {
			return false
		}
	}
	return true
}
