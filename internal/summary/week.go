package summary

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// WeekScheme identifies how a sheet writes its week identifiers.
type WeekScheme string

const (
	SchemeNone   WeekScheme = ""
	SchemeNumber WeekScheme = "number" // 48, 48주차, W48
	SchemeISO    WeekScheme = "iso"    // 2025-W48
)

// MaxWeekNumber bounds plain week numbers. Production calendars may run past
// 52 when a season spans a year boundary.
const MaxWeekNumber = 60

// Week is a week identifier. Year is zero for the number scheme.
type Week struct {
	Year   int
	Number int
}

func (w Week) IsZero() bool { return w.Number == 0 }

// Ordinal orders weeks within one scheme.
func (w Week) Ordinal() int { return w.Year*100 + w.Number }

func (w Week) String() string {
	switch {
	case w.IsZero():
		return ""
	case w.Year == 0:
		return strconv.Itoa(w.Number)
	default:
		return fmt.Sprintf("%04d-W%02d", w.Year, w.Number)
	}
}

// Next returns the following week, rolling ISO weeks into the next year.
func (w Week) Next() Week {
	if w.IsZero() {
		return Week{}
	}
	if w.Year != 0 && w.Number >= isoWeeksInYear(w.Year) {
		return Week{Year: w.Year + 1, Number: 1}
	}
	return Week{Year: w.Year, Number: w.Number + 1}
}

var (
	numberWeekRegex = regexp.MustCompile(`^(?i)(?:w|wk|week)?\s*(\d{1,2})(?:\.0+)?\s*(?:주차|주)?$`)
	isoWeekRegex    = regexp.MustCompile(`^(?i)(\d{4})\s*-?\s*w(\d{1,2})$`)

	// Markers above the header row, e.g. "48주차 (금주)" or "Current week: 48".
	koreanMarkerRegex  = regexp.MustCompile(`(\d{1,2})\s*주차\s*\(\s*금주\s*\)`)
	englishMarkerRegex = regexp.MustCompile(`(?i)current\s+week\s*[:=]?\s*(\d{1,2})`)
)

// ParseWeek parses a week cell.
func ParseWeek(raw string) (Week, WeekScheme, error) {
	s := cleanCell(raw)
	if s == "" {
		return Week{}, SchemeNone, fmt.Errorf("empty week")
	}

	if m := isoWeekRegex.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		n, _ := strconv.Atoi(m[2])
		if n < 1 || n > isoWeeksInYear(year) {
			return Week{}, SchemeNone, fmt.Errorf("week %d out of range for %d", n, year)
		}
		return Week{Year: year, Number: n}, SchemeISO, nil
	}

	if m := numberWeekRegex.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > MaxWeekNumber {
			return Week{}, SchemeNone, fmt.Errorf("week %d out of range 1..%d", n, MaxWeekNumber)
		}
		return Week{Number: n}, SchemeNumber, nil
	}

	return Week{}, SchemeNone, fmt.Errorf("unrecognized week identifier")
}

// parseWeekMarker extracts the current week number from a marker cell.
func parseWeekMarker(cell string) (int, bool) {
	for _, re := range []*regexp.Regexp{koreanMarkerRegex, englishMarkerRegex} {
		if m := re.FindStringSubmatch(cell); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n >= 1 && n <= MaxWeekNumber {
				return n, true
			}
		}
	}
	return 0, false
}

// isoWeeksInYear returns 52 or 53. December 28 always falls in the last ISO
// week of its year.
func isoWeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}
