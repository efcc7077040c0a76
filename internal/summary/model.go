// Package summary turns production-schedule sheets into immutable aggregates.
//
// A [Summary] is built once per successful sync by a [Parser] and never
// modified afterwards. Readers may share a *Summary freely across goroutines.
//
// Quantities are decimals so that sums are exact and independent of row
// order. Ratios are float64 and are defined as zero whenever the target is
// zero.
package summary

import (
	"github.com/shopspring/decimal"
)

// Basis names a presentation cut of the schedule. Each basis is parsed from
// its own worksheet.
type Basis string

const (
	BasisQuantity   Basis = "quantity"
	BasisStyleCount Basis = "style_count"
)

// AllBases lists every basis in display order.
var AllBases = []Basis{BasisQuantity, BasisStyleCount}

// ParseBasis maps user input ("quantity", "style-count", ...) to a Basis.
func ParseBasis(s string) (Basis, bool) {
	switch normalizeHeader(s) {
	case "", "quantity", "qty", "수량":
		return BasisQuantity, true
	case "style count", "stylecount", "style", "스타일수":
		return BasisStyleCount, true
	}
	return "", false
}

// Dimension is a grouping axis.
type Dimension string

const (
	DimCountry     Dimension = "country"
	DimItem        Dimension = "item"
	DimCategory    Dimension = "category"
	DimSubCategory Dimension = "sub_category"
	DimWeek        Dimension = "week"
)

// AllDimensions lists every grouping axis.
var AllDimensions = []Dimension{DimCountry, DimItem, DimCategory, DimSubCategory, DimWeek}

// Row is one data row of a sheet after coercion.
type Row struct {
	Country     string
	Item        string
	Category    string
	SubCategory string
	Week        Week
	Target      decimal.Decimal
	Completed   decimal.Decimal
	Line        int // 1-based sheet row
}

func (r Row) dimension(d Dimension) string {
	switch d {
	case DimCountry:
		return r.Country
	case DimItem:
		return r.Item
	case DimCategory:
		return r.Category
	case DimSubCategory:
		return r.SubCategory
	default:
		return r.Week.String()
	}
}

// WeekTotals are the sums of one group for a single week.
type WeekTotals struct {
	Week      Week
	Target    decimal.Decimal
	Completed decimal.Decimal
	Ratio     float64
}

// Group aggregates every row sharing a normalized dimension key.
type Group struct {
	Key       string
	Label     string
	Target    decimal.Decimal
	Completed decimal.Decimal
	Ratio     float64
	ByWeek    []WeekTotals // ordered by week
}

// Week returns the totals of g for w, zero if g has no rows in that week.
func (g Group) Week(w Week) WeekTotals {
	for _, wt := range g.ByWeek {
		if wt.Week == w {
			return wt
		}
	}
	return WeekTotals{Week: w, Target: decimal.Zero, Completed: decimal.Zero}
}

// KPI holds the headline figures of a sheet relative to one week.
type KPI struct {
	TotalTarget     decimal.Decimal
	TotalCompleted  decimal.Decimal
	CompletionRatio float64

	CurrentWeekTarget    decimal.Decimal
	CurrentWeekCompleted decimal.Decimal
	CurrentWeekProgress  float64

	// Cumulative figures cover every week up to and including the KPI week.
	CumulativeTarget    decimal.Decimal
	CumulativeCompleted decimal.Decimal
	CumulativeProgress  float64
}

// WeekInfo describes which weeks a sheet considers current and next.
type WeekInfo struct {
	Current Week
	Next    Week
	Scheme  WeekScheme
	// Source tells where Current came from: "override", "marker" or "data".
	// Empty when no current week could be determined.
	Source string
}

// Sheet is the parsed content of one worksheet.
type Sheet struct {
	Name   string
	Rows   []Row
	Weeks  WeekInfo
	Totals KPI
	Groups map[Dimension][]Group
}

// KPIFor computes headline figures relative to week w.
func (s *Sheet) KPIFor(w Week) KPI {
	k := KPI{
		TotalTarget:          decimal.Zero,
		TotalCompleted:       decimal.Zero,
		CurrentWeekTarget:    decimal.Zero,
		CurrentWeekCompleted: decimal.Zero,
		CumulativeTarget:     decimal.Zero,
		CumulativeCompleted:  decimal.Zero,
	}
	for _, r := range s.Rows {
		k.TotalTarget = k.TotalTarget.Add(r.Target)
		k.TotalCompleted = k.TotalCompleted.Add(r.Completed)
		if w.IsZero() {
			continue
		}
		if r.Week == w {
			k.CurrentWeekTarget = k.CurrentWeekTarget.Add(r.Target)
			k.CurrentWeekCompleted = k.CurrentWeekCompleted.Add(r.Completed)
		}
		if r.Week.Ordinal() <= w.Ordinal() {
			k.CumulativeTarget = k.CumulativeTarget.Add(r.Target)
			k.CumulativeCompleted = k.CumulativeCompleted.Add(r.Completed)
		}
	}
	k.CompletionRatio = Ratio(k.TotalCompleted, k.TotalTarget)
	k.CurrentWeekProgress = Ratio(k.CurrentWeekCompleted, k.CurrentWeekTarget)
	k.CumulativeProgress = Ratio(k.CumulativeCompleted, k.CumulativeTarget)
	return k
}

// Summary is the immutable result of one successful sync.
type Summary struct {
	FileName    string
	ContentHash string   // hex sha256 of the raw workbook bytes
	Sheets      []string // worksheet names in workbook order
	Bases       map[Basis]*Sheet
}

// Basis returns the parsed sheet for b.
func (s *Summary) Basis(b Basis) (*Sheet, bool) {
	if s == nil {
		return nil, false
	}
	sh, ok := s.Bases[b]
	return sh, ok
}

// WeekScheme returns the week scheme of the first basis that has one.
func (s *Summary) WeekScheme() WeekScheme {
	if s == nil {
		return SchemeNone
	}
	for _, b := range AllBases {
		if sh, ok := s.Bases[b]; ok && sh.Weeks.Scheme != SchemeNone {
			return sh.Weeks.Scheme
		}
	}
	return SchemeNone
}

// IsEmpty reports whether s holds no data rows at all.
func (s *Summary) IsEmpty() bool {
	if s == nil {
		return true
	}
	for _, sh := range s.Bases {
		if len(sh.Rows) > 0 {
			return false
		}
	}
	return true
}

// Empty returns the summary served before the first successful sync:
// every basis present, no rows, zero totals.
func Empty() *Summary {
	s := &Summary{Sheets: []string{}, Bases: make(map[Basis]*Sheet, len(AllBases))}
	for _, b := range AllBases {
		s.Bases[b] = newSheet("", nil, WeekInfo{})
	}
	return s
}

// Ratio returns completed/target, or 0 when target is zero.
func Ratio(completed, target decimal.Decimal) float64 {
	if target.IsZero() {
		return 0
	}
	return completed.Div(target).InexactFloat64()
}
