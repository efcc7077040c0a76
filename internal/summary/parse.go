package summary

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/proddash/internal/sheet"
)

// Selector maps each basis to the worksheet it is parsed from. A basis with
// no entry (or an empty name) is omitted from the Summary. The quantity basis
// is required.
type Selector map[Basis]string

// NewSelector builds a Selector. An empty styleCount disables that basis.
func NewSelector(quantity, styleCount string) Selector {
	sel := Selector{BasisQuantity: quantity}
	if styleCount != "" {
		sel[BasisStyleCount] = styleCount
	}
	return sel
}

// Options tune parsing.
type Options struct {
	// CurrentWeek pins the current week number. Zero derives it from the
	// sheet marker or, failing that, the latest week in the data.
	CurrentWeek int
}

// Parser converts spreadsheet payloads into Summaries. A Parser holds no
// mutable state and may be shared.
type Parser struct {
	opts Options
}

// NewParser returns a Parser with the given options.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Parse opens data as a workbook and parses every selected sheet. file is the
// logical file name and only appears in diagnostics.
func (p *Parser) Parse(data []byte, file string, sel Selector) (*Summary, error) {
	if sel[BasisQuantity] == "" {
		return nil, errors.New("summary: selector has no quantity sheet")
	}

	format, err := sheet.Detect(data)
	if err != nil {
		return nil, &SchemaError{File: file, Err: ErrUnreadable, Detail: err.Error()}
	}
	if format == sheet.FormatCSV {
		// A delimited file carries a single sheet.
		sel = Selector{BasisQuantity: sel[BasisQuantity]}
	}

	src, err := sheet.Open(data, sel[BasisQuantity])
	if err != nil {
		return nil, &SchemaError{File: file, Err: ErrUnreadable, Detail: err.Error()}
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	s, err := p.ParseSource(src, file, sel)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	s.ContentHash = hex.EncodeToString(sum[:])
	return s, nil
}

// ParseSource parses an already opened record source. ContentHash is left
// empty since the raw bytes are unknown.
func (p *Parser) ParseSource(src sheet.Source, file string, sel Selector) (*Summary, error) {
	if sel[BasisQuantity] == "" {
		return nil, errors.New("summary: selector has no quantity sheet")
	}

	names := src.SheetNames()
	s := &Summary{
		FileName: file,
		Sheets:   names,
		Bases:    make(map[Basis]*Sheet, len(sel)),
	}

	for _, b := range AllBases {
		name := sel[b]
		if name == "" {
			continue
		}
		sh, err := p.parseSheet(src, file, resolveSheetName(names, name))
		if err != nil {
			return nil, err
		}
		s.Bases[b] = sh
	}
	return s, nil
}

// resolveSheetName returns the workbook's spelling of want, tolerating case
// and whitespace differences. Unknown names are returned unchanged.
func resolveSheetName(names []string, want string) string {
	norm := normalizeHeader(want)
	for _, n := range names {
		if n == want {
			return n
		}
	}
	for _, n := range names {
		if normalizeHeader(n) == norm {
			return n
		}
	}
	return want
}

func (p *Parser) parseSheet(src sheet.Source, file, name string) (*Sheet, error) {
	rows, err := src.Rows(name)
	if err != nil {
		if errors.Is(err, sheet.ErrNotFound) {
			return nil, &SchemaError{
				File:   file,
				Sheet:  name,
				Err:    ErrSheetNotFound,
				Detail: "available: " + strings.Join(src.SheetNames(), ", "),
			}
		}
		return nil, &SchemaError{File: file, Sheet: name, Err: ErrUnreadable, Detail: err.Error()}
	}

	idx, header, missing := findHeader(rows)
	if header < 0 {
		return nil, &SchemaError{
			File:   file,
			Sheet:  name,
			Err:    ErrMissingColumn,
			Detail: strings.Join(missing, ", "),
		}
	}

	marker := 0
	for _, row := range rows[:header] {
		for _, cell := range row {
			if n, ok := parseWeekMarker(cell); ok && marker == 0 {
				marker = n
			}
		}
	}

	cellErr := func(line int, col column, value string, err error, detail string) error {
		return &SchemaError{
			File:   file,
			Sheet:  name,
			Line:   line,
			Column: string(col),
			Value:  value,
			Err:    err,
			Detail: detail,
		}
	}

	var (
		scheme  WeekScheme
		records []Row
	)
	for i := header + 1; i < len(rows); i++ {
		raw := rows[i]
		line := i + 1

		r := Row{
			Country:     idx.cell(raw, colCountry),
			Item:        idx.cell(raw, colItem),
			Category:    idx.cell(raw, colCategory),
			SubCategory: idx.cell(raw, colSubCategory),
			Line:        line,
		}
		weekRaw := idx.cell(raw, colWeek)
		if weekRaw == "" && r.Country == "" && r.Item == "" && r.Category == "" && r.SubCategory == "" {
			continue
		}

		w, ws, err := ParseWeek(weekRaw)
		if err != nil {
			return nil, cellErr(line, colWeek, weekRaw, ErrInvalidValue, err.Error())
		}
		if scheme == SchemeNone {
			scheme = ws
		} else if ws != scheme {
			return nil, cellErr(line, colWeek, weekRaw, ErrWeekScheme,
				fmt.Sprintf("%s identifier in a sheet using %s weeks", ws, scheme))
		}
		r.Week = w

		targetRaw := idx.cell(raw, colTarget)
		if r.Target, err = parseQuantity(targetRaw); err != nil {
			return nil, cellErr(line, colTarget, targetRaw, ErrInvalidValue, err.Error())
		}
		completedRaw := idx.cell(raw, colCompleted)
		if r.Completed, err = parseQuantity(completedRaw); err != nil {
			return nil, cellErr(line, colCompleted, completedRaw, ErrInvalidValue, err.Error())
		}

		records = append(records, r)
	}

	return newSheet(name, records, p.resolveWeeks(marker, scheme, records)), nil
}

// resolveWeeks picks the current week: configured override, then the sheet
// marker, then the latest week present in the data.
func (p *Parser) resolveWeeks(marker int, scheme WeekScheme, rows []Row) WeekInfo {
	var latest Week
	for _, r := range rows {
		if r.Week.Ordinal() > latest.Ordinal() {
			latest = r.Week
		}
	}

	info := WeekInfo{Scheme: scheme}
	switch {
	case p.opts.CurrentWeek > 0:
		info.Current = Week{Year: latest.Year, Number: p.opts.CurrentWeek}
		info.Source = "override"
	case marker > 0:
		info.Current = Week{Year: latest.Year, Number: marker}
		info.Source = "marker"
	case !latest.IsZero():
		info.Current = latest
		info.Source = "data"
	}
	info.Next = info.Current.Next()
	return info
}
