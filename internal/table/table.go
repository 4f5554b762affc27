// Package table reads and writes header-keyed tabular files in CSV or XLSX
// format. OpenDocument spreadsheets (.ods) can be read.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for file extensions the package cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported table format")
	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = errors.New("missing column")
)

const sheetName = "Sheet1"

// Table is a header row plus data rows. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// New returns an empty table with the given header.
func New(header ...string) *Table {
	return &Table{Header: header}
}

// Append adds a row. Short rows are padded, long rows are truncated.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, normalizeRow(cells, len(t.Header)))
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the index of the named column or -1.
// Matching ignores case and surrounding whitespace.
func (t *Table) Column(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.Header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

// RequireColumns returns ErrMissingColumn naming the first absent column.
func (t *Table) RequireColumns(names ...string) error {
	for _, n := range names {
		if t.Column(n) < 0 {
			return fmt.Errorf("%w: %q", ErrMissingColumn, n)
		}
	}
	return nil
}

// Records returns one Record per row.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = Record{table: t, row: row, Line: i + 2}
	}
	return out
}

// Record is a single row addressed by column name.
type Record struct {
	table *Table
	row   []string
	// Line is the 1-based line (or sheet row) in the source file, counting the header.
	Line int
}

// Get returns the trimmed cell value for column name, or "" when the column is absent.
func (r Record) Get(name string) string {
	i := r.table.Column(name)
	if i < 0 || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

// Read loads a table from path, choosing the format by extension.
func Read(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCSV(f)
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open Excel: %w", err)
		}
		defer f.Close()
		return readExcel(f)
	case ".ods":
		return readODS(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func readCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	return fromRecords(records)
}

func readExcel(f *excelize.File) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return fromRecords(rows)
}

func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.New("table has no header row")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &Table{Header: header}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, normalizeRow(rec, len(header)))
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func normalizeRow(cells []string, n int) []string {
	row := make([]string, n)
	copy(row, cells)
	return row
}

// Write stores t at path, choosing the format by extension. The file is written
// to a temporary sibling and renamed into place, so readers never observe a
// partial table.
func Write(path string, t *Table) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		if err := writeCSV(&buf, t); err != nil {
			return err
		}
	case ".xlsx":
		if err := writeExcel(&buf, t); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return WriteFileAtomic(path, buf.Bytes())
}

func writeCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	return nil
}

func writeExcel(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()
	all := append([][]string{t.Header}, t.Rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write Excel row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write Excel: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file in the same directory and
// renames it to path. Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
