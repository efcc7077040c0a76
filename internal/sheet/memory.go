package sheet

import "fmt"

// Memory is an in-memory Source, mainly for tests and fixtures.
// The zero value is an empty workbook.
type Memory struct {
	names []string
	rows  map[string][][]string
}

// NewMemory returns an empty in-memory workbook.
func NewMemory() *Memory {
	return &Memory{rows: map[string][][]string{}}
}

// Add appends (or replaces) a sheet and returns m for chaining.
func (m *Memory) Add(name string, rows [][]string) *Memory {
	if m.rows == nil {
		m.rows = map[string][][]string{}
	}
	if _, exists := m.rows[name]; !exists {
		m.names = append(m.names, name)
	}
	m.rows[name] = rows
	return m
}

func (m *Memory) SheetNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

func (m *Memory) Rows(name string) ([][]string, error) {
	rows, ok := m.rows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return rows, nil
}
