// Package export writes directory records to flat files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/reso-directory/internal/model"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Organizations"

// leadingColumns are always written first, in this order.
var leadingColumns = []string{
	model.FieldName,
	model.FieldType,
	model.FieldStateOrProvince,
	model.FieldCountry,
}

// Columns returns the header for orgs: the well-known fields first, then
// every other key seen in any record, sorted.
func Columns(orgs []model.Organization) []string {
	seen := make(map[string]bool, len(leadingColumns))
	for _, c := range leadingColumns {
		seen[c] = true
	}
	var extra []string
	for _, o := range orgs {
		for k := range o {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(append([]string{}, leadingColumns...), extra...)
}

// Cell renders one record value as text. Strings are written as-is, absent
// and null values as empty, and anything else as compact JSON.
func Cell(o model.Organization, key string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func rows(orgs []model.Organization) [][]string {
	cols := Columns(orgs)
	out := make([][]string, 0, len(orgs)+1)
	out = append(out, cols)
	for _, o := range orgs {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = Cell(o, c)
		}
		out = append(out, row)
	}
	return out
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, orgs []model.Organization) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows(orgs)); err != nil {
		return eris.Wrap(err, "csv: write")
	}
	return nil
}

// WriteXLSX saves orgs as a single-sheet workbook at path.
func WriteXLSX(path string, orgs []model.Organization) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}
	for _, data := range rows(orgs) {
		row := sheet.AddRow()
		for _, v := range data {
			row.AddCell().SetString(v)
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// Export formats returned by Format.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Format picks the output format from a file extension.
func Format(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("unsupported export format %q (want .csv or .xlsx)", ext)
	}
}
