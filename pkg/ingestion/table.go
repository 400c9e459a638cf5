package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrEmptyFile = errors.New("file has no header row")

// Table is a header row plus data rows, independent of the file format.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
	// lines holds the source line of each row when it was read from a file.
	lines []int
}

// NewTable assumes the rows follow the header with no gaps; tables read from
// files keep their real source lines instead.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: make([]string, len(header)), Rows: rows, index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.Header[i] = name
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	return t
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Row returns a view over data row i (0-based).
func (t *Table) Row(i int) Row {
	line := i + 2
	if i < len(t.lines) {
		line = t.lines[i]
	}
	return Row{Line: line, table: t, values: t.Rows[i]}
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// Row is one data line. Line is the 1-based line number in the source file.
type Row struct {
	Line   int
	table  *Table
	values []string
}

// Get returns the raw cell; ok is false for a missing column or an empty cell.
func (r Row) Get(column string) (string, bool) {
	i, ok := r.table.index[column]
	if !ok || i >= len(r.values) {
		return "", false
	}
	v := r.values[i]
	if strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Text returns the trimmed cell as a pointer, nil when empty.
func (r Row) Text(column string) *string {
	v, ok := r.Get(column)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	return &v
}

func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return tableFromRecords(records, lines)
}

func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets: %w", ErrEmptyFile)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	// GetRows keeps empty sheet rows, so the slice index is the row number minus one.
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return tableFromRecords(rows, lines)
}

// ReadTable picks the reader from the file extension; anything that is not
// .xlsx is read as CSV.
func ReadTable(filename string, r io.Reader) (*Table, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// tableFromRecords takes the first non-blank record as the header and drops
// blank records, keeping the source line of every row it retains.
func tableFromRecords(records [][]string, lines []int) (*Table, error) {
	start := 0
	for start < len(records) && blankRecord(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, ErrEmptyFile
	}
	body := make([][]string, 0, len(records)-start-1)
	bodyLines := make([]int, 0, len(records)-start-1)
	for i := start + 1; i < len(records); i++ {
		if blankRecord(records[i]) {
			continue
		}
		body = append(body, records[i])
		bodyLines = append(bodyLines, lines[i])
	}
	t := NewTable(records[start], body)
	t.lines = bodyLines
	return t, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
