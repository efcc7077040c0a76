// Package sheet provides tabular record sources over spreadsheet payloads.
//
// A [Source] exposes named sheets as rows of string cells. The summary parser
// only depends on this interface, so grouping and aggregation logic can be
// exercised against in-memory fixtures without a real workbook file.
//
// Supported formats:
//   - Office Open XML workbooks (.xlsx), read with excelize
//   - Comma-separated text (single sheet), read with encoding/csv
//   - In-memory fixtures via [Memory]
package sheet

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Rows when the requested sheet does not exist.
var ErrNotFound = errors.New("sheet not found")

// ErrUnsupportedFormat is returned by Open when the payload is not a readable
// spreadsheet (legacy binary workbooks, HTML pages, empty payloads).
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Source is a read-only collection of named sheets.
type Source interface {
	// SheetNames returns sheet names in workbook order.
	SheetNames() []string
	// Rows returns every row of the named sheet. Rows may have different
	// lengths; trailing empty cells are usually omitted.
	Rows(name string) ([][]string, error)
}

// Format identifies the detected payload format.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Detect sniffs the payload format from its leading bytes.
func Detect(data []byte) (Format, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return FormatUnknown, fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return FormatUnknown, fmt.Errorf("%w: legacy or encrypted workbook", ErrUnsupportedFormat)
	case looksLikeHTML(trimmed):
		return FormatUnknown, fmt.Errorf("%w: payload is an HTML page", ErrUnsupportedFormat)
	default:
		return FormatCSV, nil
	}
}

// Open detects the payload format and returns a matching Source.
// csvSheet names the single sheet exposed by CSV payloads.
// Sources that hold resources implement io.Closer.
func Open(data []byte, csvSheet string) (Source, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, err
	}

	var src Source
	switch format {
	case FormatXLSX:
		src, err = openXLSX(data)
	default:
		src, err = openCSV(data, csvSheet)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.ToLower(head)
	return bytes.HasPrefix(head, []byte("<!doctype html")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<head>"))
}
