package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// Format is a dataset file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatJSONL Format = "jsonl"
)

// DetectFormat picks the format from override, or from the extension of
// name when override is empty.
func DetectFormat(name, override string) (Format, error) {
	f := strings.ToLower(strings.TrimSpace(override))
	if f == "" {
		f = strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	}
	switch f {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("importer: %w: format %q of %s", domain.ErrUnsupportedSource, f, name)
}

// ReadCSV reads a header row followed by data rows.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("importer: read csv: %w", err)
	}
	return rowsFromRecords(records), nil
}

// ReadXLSX reads the named sheet, or the first sheet when sheet is empty.
func ReadXLSX(r io.Reader, sheet string) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("importer: open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("importer: xlsx has no sheets")
		}
		sheet = sheets[0]
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("importer: read sheet %q: %w", sheet, err)
	}
	return rowsFromRecords(records), nil
}

// rowsFromRecords keys every record by the first record's headers. Lines
// are 1-based as a spreadsheet shows them; blank rows are dropped.
func rowsFromRecords(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normaliseHeader(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		fields := make(map[string]string, len(headers))
		blank := true
		for j, v := range rec {
			if j >= len(headers) || headers[j] == "" {
				continue
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			fields[headers[j]] = v
		}
		if blank {
			continue
		}
		rows = append(rows, Row{Line: i + 2, Fields: fields})
	}
	return rows
}

// ReadJSONL decodes one market per line, the layout written by directory
// snapshots.
func ReadJSONL(r io.Reader) ([]domain.Market, error) {
	dec := json.NewDecoder(r)
	var markets []domain.Market
	for line := 1; ; line++ {
		var m domain.Market
		if err := dec.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return markets, nil
			}
			return nil, fmt.Errorf("importer: decode jsonl record %d: %w", line, err)
		}
		markets = append(markets, m)
	}
}
