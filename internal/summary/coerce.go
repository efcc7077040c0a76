package summary

// coerce.go turns raw cell text into quantities.
//
// Spreadsheet exports are messy in predictable ways:
//   - Thousands separators and stray spaces ("1,200", "1 200")
//   - Accounting negatives ("(12)")
//   - Formula prefixes ("=12", "=\"12\"")
//   - Error literals left by broken formulas (#N/A, #DIV/0!, #REF!)
//
// Empty cells and error literals count as zero. Anything else that is not a
// number is reported so schema drift never silently zeroes a column.

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex validates a cleaned quantity: integers, decimals and
// scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// errorLiteralRegex matches spreadsheet error values such as #N/A or #DIV/0!.
var errorLiteralRegex = regexp.MustCompile(`^#[A-Z0-9/_]+[!?]?$`)

var errNotNumeric = errors.New("not a number")

// cleanCell strips whitespace, formula prefixes and surrounding quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// parseQuantity coerces a quantity cell.
func parseQuantity(raw string) (decimal.Decimal, error) {
	s := cleanCell(raw)
	if s == "" || s == "-" || errorLiteralRegex.MatchString(strings.ToUpper(s)) {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.Join(strings.Fields(s), "")

	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, errNotNumeric
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errNotNumeric
	}
	return d, nil
}
