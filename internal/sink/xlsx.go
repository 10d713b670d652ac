package sink

import (
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

var sheetNames = map[model.Outcome]string{
	model.OutcomeValid:        "Valid",
	model.OutcomeInvalid:      "Invalid",
	model.OutcomeManualReview: "Manual Review",
}

// ExportXLSX writes a timestamped workbook with one sheet per outcome and
// returns its path.
func ExportXLSX(dir string, rows []model.OutputRow, now time.Time) (string, error) {
	f := xlsx.NewFile()
	sheets := make(map[model.Outcome]*xlsx.Sheet, len(model.Outcomes))
	for _, o := range model.Outcomes {
		sheet, err := f.AddSheet(sheetNames[o])
		if err != nil {
			return "", eris.Wrapf(err, "xlsx: add sheet %s", sheetNames[o])
		}
		addRow(sheet, HeaderFor(o))
		sheets[o] = sheet
	}
	for _, r := range rows {
		addRow(sheets[r.Outcome], Row(r))
	}

	path := filepath.Join(dir, "results_"+now.Format("20060102_150405")+".xlsx")
	if err := f.Save(path); err != nil {
		return "", eris.Wrapf(err, "xlsx: save %s", path)
	}
	return path, nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
