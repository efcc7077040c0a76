package summary

// columns.go locates the header row and maps required columns to positions.
//
// Headers are matched after normalization (case fold, "_" and "-" treated as
// spaces, whitespace collapsed) against English and Korean aliases, so
// "Sub-Category", "sub_category" and "세부 복종" all resolve to the same column.

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// column is a required logical column.
type column string

const (
	colCountry     column = "country"
	colItem        column = "item"
	colCategory    column = "category"
	colSubCategory column = "sub_category"
	colWeek        column = "week"
	colTarget      column = "target"
	colCompleted   column = "completed"
)

var requiredColumns = []column{
	colCountry, colItem, colCategory, colSubCategory, colWeek, colTarget, colCompleted,
}

var columnAliases = map[column][]string{
	colCountry:     {"country", "nation", "국가"},
	colItem:        {"item", "아이템"},
	colCategory:    {"category", "복종"},
	colSubCategory: {"sub category", "subcategory", "세부복종", "세부 복종"},
	colWeek:        {"week", "주차"},
	colTarget:      {"target", "목표", "계획"},
	colCompleted:   {"completed", "actual", "실적", "완료"},
}

// headerSearchRows bounds how far down the header row may appear.
const headerSearchRows = 20

// aliasLookup maps a normalized alias to its column.
var aliasLookup = func() map[string]column {
	m := make(map[string]column)
	for col, aliases := range columnAliases {
		for _, a := range aliases {
			m[normalizeHeader(a)] = col
		}
	}
	return m
}()

// headerIndex maps each column to its cell position.
type headerIndex map[column]int

// cell returns the trimmed value of col in row, or "" if the row is short.
func (h headerIndex) cell(row []string, col column) string {
	pos, ok := h[col]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

// normalizeHeader folds case and collapses separators.
func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// indexHeader maps the recognized cells of row. The first occurrence wins
// when a column appears twice.
func indexHeader(row []string) headerIndex {
	idx := make(headerIndex)
	for i, cell := range row {
		col, ok := aliasLookup[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, seen := idx[col]; !seen {
			idx[col] = i
		}
	}
	return idx
}

// findHeader returns the 0-based position of the first row containing every
// required column. When none qualifies it returns -1 and the columns missing
// from the closest candidate.
func findHeader(rows [][]string) (headerIndex, int, []string) {
	var best headerIndex
	limit := min(len(rows), headerSearchRows)

	for i := 0; i < limit; i++ {
		idx := indexHeader(rows[i])
		if len(idx) == len(requiredColumns) {
			return idx, i, nil
		}
		if len(idx) > len(best) {
			best = idx
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := best[col]; !ok {
			missing = append(missing, string(col))
		}
	}
	sort.Strings(missing)
	return nil, -1, missing
}
