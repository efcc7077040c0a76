package summary

import (
	"errors"
	"fmt"
)

// ErrUnknownBasis is returned when a view is requested for a basis the
// Summary does not carry.
var ErrUnknownBasis = errors.New("unknown basis")

// WeekMode selects the week a view is relative to.
type WeekMode string

const (
	WeekCurrent WeekMode = "current"
	WeekNext    WeekMode = "next"
)

// ParseWeekMode maps user input to a WeekMode. Empty means current.
func ParseWeekMode(s string) (WeekMode, bool) {
	switch normalizeHeader(s) {
	case "", "current", "this", "금주":
		return WeekCurrent, true
	case "next", "차주":
		return WeekNext, true
	}
	return "", false
}

// View is a presentation cut of one basis relative to one week. Numbers are
// float64 for display; the Summary keeps the exact values.
type View struct {
	Basis       Basis                     `json:"basis"`
	Sheet       string                    `json:"sheet"`
	FileName    string                    `json:"file_name"`
	WeekMode    WeekMode                  `json:"week_mode"`
	Week        string                    `json:"week"`
	CurrentWeek string                    `json:"current_week"`
	NextWeek    string                    `json:"next_week"`
	WeekScheme  WeekScheme                `json:"week_scheme"`
	WeekSource  string                    `json:"week_source"`
	RowCount    int                       `json:"row_count"`
	KPI         KPIView                   `json:"kpi"`
	Groups      map[Dimension][]GroupView `json:"groups"`
	Weeks       []WeekView                `json:"weeks"`
}

// KPIView holds headline figures relative to the view week.
type KPIView struct {
	TotalTarget         float64 `json:"total_target"`
	TotalCompleted      float64 `json:"total_completed"`
	CompletionRatio     float64 `json:"completion_ratio"`
	WeekTarget          float64 `json:"week_target"`
	WeekCompleted       float64 `json:"week_completed"`
	WeekProgress        float64 `json:"week_progress"`
	CumulativeTarget    float64 `json:"cumulative_target"`
	CumulativeCompleted float64 `json:"cumulative_completed"`
	CumulativeProgress  float64 `json:"cumulative_progress"`
}

// GroupView is one group row. Week figures cover the view week only.
type GroupView struct {
	Key           string  `json:"key"`
	Label         string  `json:"label"`
	Target        float64 `json:"target"`
	Completed     float64 `json:"completed"`
	Ratio         float64 `json:"ratio"`
	WeekTarget    float64 `json:"week_target"`
	WeekCompleted float64 `json:"week_completed"`
	WeekRatio     float64 `json:"week_ratio"`
}

// WeekView is the trend entry of one week.
type WeekView struct {
	Week      string  `json:"week"`
	Target    float64 `json:"target"`
	Completed float64 `json:"completed"`
	Ratio     float64 `json:"ratio"`
}

// View builds the presentation cut for basis b and week mode m.
func (s *Summary) View(b Basis, m WeekMode) (View, error) {
	sh, ok := s.Basis(b)
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrUnknownBasis, b)
	}

	week := sh.Weeks.Current
	if m == WeekNext {
		week = sh.Weeks.Next
	} else {
		m = WeekCurrent
	}

	k := sh.KPIFor(week)
	v := View{
		Basis:       b,
		Sheet:       sh.Name,
		FileName:    s.FileName,
		WeekMode:    m,
		Week:        week.String(),
		CurrentWeek: sh.Weeks.Current.String(),
		NextWeek:    sh.Weeks.Next.String(),
		WeekScheme:  sh.Weeks.Scheme,
		WeekSource:  sh.Weeks.Source,
		RowCount:    len(sh.Rows),
		KPI: KPIView{
			TotalTarget:         k.TotalTarget.InexactFloat64(),
			TotalCompleted:      k.TotalCompleted.InexactFloat64(),
			CompletionRatio:     k.CompletionRatio,
			WeekTarget:          k.CurrentWeekTarget.InexactFloat64(),
			WeekCompleted:       k.CurrentWeekCompleted.InexactFloat64(),
			WeekProgress:        k.CurrentWeekProgress,
			CumulativeTarget:    k.CumulativeTarget.InexactFloat64(),
			CumulativeCompleted: k.CumulativeCompleted.InexactFloat64(),
			CumulativeProgress:  k.CumulativeProgress,
		},
		Groups: make(map[Dimension][]GroupView, len(AllDimensions)),
		Weeks:  []WeekView{},
	}

	for _, d := range AllDimensions {
		groups := sh.Groups[d]
		out := make([]GroupView, 0, len(groups))
		for _, g := range groups {
			wt := g.Week(week)
			out = append(out, GroupView{
				Key:           g.Key,
				Label:         g.Label,
				Target:        g.Target.InexactFloat64(),
				Completed:     g.Completed.InexactFloat64(),
				Ratio:         g.Ratio,
				WeekTarget:    wt.Target.InexactFloat64(),
				WeekCompleted: wt.Completed.InexactFloat64(),
				WeekRatio:     wt.Ratio,
			})
		}
		v.Groups[d] = out
	}

	for _, g := range sh.Groups[DimWeek] {
		v.Weeks = append(v.Weeks, WeekView{
			Week:      g.Label,
			Target:    g.Target.InexactFloat64(),
			Completed: g.Completed.InexactFloat64(),
			Ratio:     g.Ratio,
		})
	}
	return v, nil
}
