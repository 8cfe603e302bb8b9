// Package export writes contact rows as CSV or XLSX and reads domain and
// role lists back from those formats.
package export

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-finder/internal/model"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Contacts"

// Content types for HTTP responses.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteCSV writes a header row and one row per contact in the fixed export
// column order.
func WriteCSV(w io.Writer, rows []model.ContactRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(model.ContactRow{}); err != nil {
		return eris.Wrap(err, "export: encode csv header")
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrapf(err, "export: encode csv row %d", i+1)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes the same table as WriteCSV to a single worksheet.
func WriteXLSX(w io.Writer, rows []model.ContactRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	addRow(sheet, model.ExportColumns)
	for _, r := range rows {
		addRow(sheet, r.Values())
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
