// Package weights reads competency weights from HR spreadsheets and applies
// them to the catalog.
package weights

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Header names the workbook must carry, in any column order.
const (
	ColumnName   = "competency_name"
	ColumnWeight = "weight"
)

// Row is one competency line of a workbook.
type Row struct {
	Line       int // 1-based spreadsheet row
	Name       string
	Weight     float64 // as written
	Normalized float64 // Weight / sum of all weights
}

// Key returns the form competency names are matched by: trimmed, inner
// whitespace collapsed, NFC-normalized and case-folded.
func Key(name string) string {
	s := strings.Join(strings.Fields(name), " ")
	return cases.Fold().String(norm.NFC.String(s))
}

// ReadFile reads rows from the named sheet of the workbook at path. An empty
// sheet name selects the first sheet.
func ReadFile(path, sheet string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return Read(f, sheet)
}

// Read parses a workbook. Rows with a blank name or weight are skipped.
// Weights must be finite and non-negative with a positive sum; they are
// normalized to sum to one. Names that collide under Key are rejected.
func Read(r io.Reader, sheet string) ([]Row, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer wb.Close()

	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	cells, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	nameCol, weightCol := -1, -1
	for i, h := range cells[0] {
		switch Key(h) {
		case ColumnName:
			nameCol = i
		case ColumnWeight:
			weightCol = i
		}
	}
	if nameCol < 0 || weightCol < 0 {
		return nil, fmt.Errorf("sheet %q must have columns %s and %s, found %v", sheet, ColumnName, ColumnWeight, cells[0])
	}

	var (
		rows []Row
		sum  float64
		seen = make(map[string]int)
	)
	for i, line := range cells[1:] {
		lineNo := i + 2
		name := strings.TrimSpace(cell(line, nameCol))
		raw := strings.TrimSpace(cell(line, weightCol))
		if name == "" || raw == "" {
			continue
		}

		w, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: weight %q is not a number", lineNo, raw)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("row %d: weight %v must be finite and non-negative", lineNo, w)
		}
		if prev, ok := seen[Key(name)]; ok {
			return nil, fmt.Errorf("row %d: competency %q repeats row %d", lineNo, name, prev)
		}
		seen[Key(name)] = lineNo

		rows = append(rows, Row{Line: lineNo, Name: name, Weight: w})
		sum += w
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no competency rows", sheet)
	}
	if sum <= 0 {
		return nil, fmt.Errorf("sheet %q: weights sum to zero", sheet)
	}
	for i := range rows {
		rows[i].Normalized = rows[i].Weight / sum
	}
	return rows, nil
}

func cell(line []string, col int) string {
	if col < len(line) {
		return line[col]
	}
	return ""
}
