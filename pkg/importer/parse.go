// Package importer loads bulk dispatch schedules from CSV or XLSX files and
// creates the corresponding backend records row by row.
package importer

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Required column headers, matched exactly after whitespace trimming.
const (
	headerCollNo   = "COLL_NO"
	headerCollName = "COLL_NAME"
	headerExam     = "EXAM"
)

// ErrMissingHeaders indicates the file's header row lacks a required column.
// No rows are processed and no records are created in that case.
var ErrMissingHeaders = errors.New("missing required headers")

// ErrUnsupportedFormat indicates the file extension is neither .csv nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Row is one schedule entry read from an import file.
type Row struct {
	// CollNo is the college's natural code (COLL_NO column).
	CollNo string `json:"collNo"`

	// CollName is the college display name; carried for reporting only,
	// the backend lookup goes by CollNo.
	CollName string `json:"collName"`

	// Exam is the raw exam date cell.
	Exam string `json:"exam"`

	// Line is the 1-based source line or sheet row, for error reporting.
	Line int `json:"line"`
}

// columns maps the required headers to their positions in the header row.
type columns struct {
	collNo, collName, exam int
}

func locateColumns(header []string) (columns, error) {
	cols := columns{collNo: -1, collName: -1, exam: -1}
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case headerCollNo:
			cols.collNo = i
		case headerCollName:
			cols.collName = i
		case headerExam:
			cols.exam = i
		}
	}

	var missing []string
	if cols.collNo == -1 {
		missing = append(missing, headerCollNo)
	}
	if cols.collName == -1 {
		missing = append(missing, headerCollName)
	}
	if cols.exam == -1 {
		missing = append(missing, headerExam)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingHeaders, strings.Join(missing, ", "))
	}
	return cols, nil
}

func cell(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// ParseCSV reads schedule rows from CSV data. Fields are plain comma-split;
// quoting and escaping are not part of the expected export format.
func ParseCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("%w: empty file", ErrMissingHeaders)
	}

	cols, err := locateColumns(strings.Split(lines[0], ","))
	if err != nil {
		return nil, err
	}

	var rows []Row
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		rows = append(rows, Row{
			CollNo:   cell(fields, cols.collNo),
			CollName: cell(fields, cols.collName),
			Exam:     cell(fields, cols.exam),
			Line:     i + 2,
		})
	}
	return rows, nil
}

// ParseXLSX reads schedule rows from the first sheet of an XLSX workbook.
func ParseXLSX(r io.Reader) ([]Row, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMissingHeaders)
	}

	cells, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrMissingHeaders)
	}

	cols, err := locateColumns(cells[0])
	if err != nil {
		return nil, err
	}

	var rows []Row
	for i, fields := range cells[1:] {
		row := Row{
			CollNo:   cell(fields, cols.collNo),
			CollName: cell(fields, cols.collName),
			Exam:     cell(fields, cols.exam),
			Line:     i + 2,
		}
		if row.CollNo == "" && row.CollName == "" && row.Exam == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseFile dispatches on the file extension.
func ParseFile(name string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}
