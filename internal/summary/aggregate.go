package summary

import (
	"html"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// labelPolicy strips every tag from display labels. Policies are safe for
// concurrent use once built.
var labelPolicy = bluemonday.StrictPolicy()

// newSheet aggregates rows into a Sheet.
func newSheet(name string, rows []Row, weeks WeekInfo) *Sheet {
	if rows == nil {
		rows = []Row{}
	}
	s := &Sheet{
		Name:   name,
		Rows:   rows,
		Weeks:  weeks,
		Groups: make(map[Dimension][]Group, len(AllDimensions)),
	}
	for _, d := range AllDimensions {
		s.Groups[d] = buildGroups(rows, d)
	}
	s.Totals = s.KPIFor(weeks.Current)
	return s
}

type groupAcc struct {
	group Group
	week  Week // set for the week dimension only
	weeks map[Week]*WeekTotals
}

func buildGroups(rows []Row, d Dimension) []Group {
	fold := cases.Fold()
	accs := make(map[string]*groupAcc)

	for _, r := range rows {
		raw := collapseSpace(r.dimension(d))
		key := fold.String(raw)

		a, ok := accs[key]
		if !ok {
			a = &groupAcc{
				group: Group{Key: key, Label: raw, Target: decimal.Zero, Completed: decimal.Zero},
				weeks: make(map[Week]*WeekTotals),
			}
			if d == DimWeek {
				a.week = r.Week
			}
			accs[key] = a
		} else if raw < a.group.Label {
			// Smallest variant wins so the label does not depend on row order.
			a.group.Label = raw
		}

		a.group.Target = a.group.Target.Add(r.Target)
		a.group.Completed = a.group.Completed.Add(r.Completed)

		wt, ok := a.weeks[r.Week]
		if !ok {
			wt = &WeekTotals{Week: r.Week, Target: decimal.Zero, Completed: decimal.Zero}
			a.weeks[r.Week] = wt
		}
		wt.Target = wt.Target.Add(r.Target)
		wt.Completed = wt.Completed.Add(r.Completed)
	}

	list := make([]*groupAcc, 0, len(accs))
	for _, a := range accs {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if d == DimWeek {
			return list[i].week.Ordinal() < list[j].week.Ordinal()
		}
		return list[i].group.Key < list[j].group.Key
	})

	groups := make([]Group, 0, len(list))
	for _, a := range list {
		g := a.group
		g.Label = sanitizeLabel(g.Label)
		g.Ratio = Ratio(g.Completed, g.Target)
		g.ByWeek = make([]WeekTotals, 0, len(a.weeks))
		for _, wt := range a.weeks {
			wt.Ratio = Ratio(wt.Completed, wt.Target)
			g.ByWeek = append(g.ByWeek, *wt)
		}
		sort.Slice(g.ByWeek, func(i, j int) bool {
			return g.ByWeek[i].Week.Ordinal() < g.ByWeek[j].Week.Ordinal()
		})
		groups = append(groups, g)
	}
	return groups
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sanitizeLabel removes markup and decodes the entities the policy escapes.
func sanitizeLabel(s string) string {
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(s)))
}
