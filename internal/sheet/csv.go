package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"
)

// utf8BOM is commonly prepended by Windows spreadsheet exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvSource exposes a CSV payload as a single sheet.
type csvSource struct {
	name string
	rows [][]string
}

func openCSV(data []byte, name string) (*csvSource, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: csv payload is not valid UTF-8", ErrUnsupportedFormat)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", ErrUnsupportedFormat, err)
	}
	return &csvSource{name: name, rows: rows}, nil
}

func (s *csvSource) SheetNames() []string {
	return []string{s.name}
}

func (s *csvSource) Rows(name string) ([][]string, error) {
	if name != s.name {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s.rows, nil
}
