package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/user/credit-sentinel/pkg/covenant"
)

// LoadSnapshotFile opens a CSV or XLSX file and returns its latest period
func LoadSnapshotFile(path string) (covenant.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSnapshot(f, filepath.Base(path))
}

// LoadSnapshot reads a financial table and returns the last non-empty row as
// a snapshot keyed by normalized column name. The format is chosen by the
// file extension of filename.
func LoadSnapshot(r io.Reader, filename string) (covenant.Snapshot, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = csvRows(r)
	case ".xlsx", ".xlsm", ".xltx":
		rows, err = xlsxRows(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return nil, err
	}
	return latestPeriod(rows)
}

func csvRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// xlsxRows reads the first sheet of the workbook
func xlsxRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func latestPeriod(rows [][]string) (covenant.Snapshot, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyTable
	}
	header := rows[0]

	var latest []string
	for i := len(rows) - 1; i >= 1; i-- {
		if !blankRow(rows[i]) {
			latest = rows[i]
			break
		}
	}
	if latest == nil {
		return nil, ErrEmptyTable
	}

	figures := make(map[string]float64, len(header))
	for i, name := range header {
		if i >= len(latest) {
			break
		}
		v, ok := ParseAmount(latest[i])
		if !ok {
			continue
		}
		figures[name] = v
	}
	return covenant.NewSnapshot(figures), nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ParseAmount parses a spreadsheet amount such as "$1,250.50" or "(300)".
// Parenthesised values are negative.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), true
}
