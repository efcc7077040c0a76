package sheet

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// xlsxSource reads sheets lazily from an opened workbook.
type xlsxSource struct {
	file  *excelize.File
	names []string
}

func openXLSX(data []byte) (*xlsxSource, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &xlsxSource{file: f, names: f.GetSheetList()}, nil
}

func (s *xlsxSource) SheetNames() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Rows returns raw cell values so numbers are not subject to display formats.
// Formula cells yield their cached results.
func (s *xlsxSource) Rows(name string) ([][]string, error) {
	if !contains(s.names, name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	rows, err := s.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		var notExist excelize.ErrSheetNotExist
		if errors.As(err, &notExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return rows, nil
}

// Close releases temporary resources held by the workbook reader.
func (s *xlsxSource) Close() error {
	return s.file.Close()
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
