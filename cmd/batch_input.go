package main

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospect-cli/internal/contacts"
)

// batchColumns are the recognized header names of a batch input file.
var batchColumns = []string{"title", "location", "industry", "limit"}

// batchRow is one parsed input line. Err is set when the line itself is
// malformed; such rows are reported without a search.
type batchRow struct {
	Line    int
	Request contacts.Request
	Err     error
}

// readBatchFile reads a CSV or XLSX file, chosen by extension.
func readBatchFile(path string) ([]batchRow, error) {
	var (
		records [][]string
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		records, err = readXLSXRecords(path)
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "batch: open input")
		}
		defer f.Close() //nolint:errcheck
		records, err = readCSVRecords(f)
	}
	if err != nil {
		return nil, err
	}
	return parseBatchRecords(records)
}

func readCSVRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "batch: read csv")
	}
	return records, nil
}

func readXLSXRecords(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("batch: xlsx has no sheets")
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		records = append(records, cells)
	}
	return records, nil
}

// parseBatchRecords maps records to rows using the header line. Title and
// location columns are required; blank lines are skipped.
func parseBatchRecords(records [][]string) ([]batchRow, error) {
	if len(records) == 0 {
		return nil, eris.New("batch: input is empty")
	}

	idx := map[string]int{}
	for i, h := range records[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, col := range batchColumns {
			if name == col {
				idx[col] = i
			}
		}
	}
	for _, col := range []string{"title", "location"} {
		if _, ok := idx[col]; !ok {
			return nil, eris.Errorf("batch: missing %q column", col)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []batchRow
	for n, rec := range records[1:] {
		if strings.TrimSpace(strings.Join(rec, "")) == "" {
			continue
		}
		row := batchRow{
			Line: n + 2,
			Request: contacts.Request{
				Title:    field(rec, "title"),
				Location: field(rec, "location"),
				Industry: field(rec, "industry"),
			},
		}
		if v := field(rec, "limit"); v != "" {
			l, err := strconv.ParseFloat(v, 64)
			if err != nil {
				row.Err = contacts.ValidationError("limit must be a number", err)
			} else {
				row.Request.Limit = &l
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
