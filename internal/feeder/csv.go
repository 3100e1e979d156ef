package feeder

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// CSVFeeder reads targets from a CSV file and yields them in deterministic
// round-robin order. It is safe for concurrent access.
//
// The first row is a header; recognized columns are path (required), method,
// and weight. Weighted rows are expanded into the rotation.
type CSVFeeder struct {
	mu      sync.Mutex
	targets []Target
	order   []int
	index   int
	rewind  bool
}

// NewCSVFeeder loads targets from path. When rewind is true the rotation
// restarts after the last row instead of reporting ErrExhausted.
func NewCSVFeeder(path string, rewind bool) (*CSVFeeder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have a header row and at least one data row")
	}

	header := rows[0]
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	pathCol, ok := cols["path"]
	if !ok {
		return nil, fmt.Errorf("CSV header must include a path column")
	}
	methodCol, hasMethod := cols["method"]
	weightCol, hasWeight := cols["weight"]

	f := &CSVFeeder{rewind: rewind}
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
		target := Target{Path: strings.TrimSpace(row[pathCol]), Weight: 1}
		if target.Path == "" {
			return nil, fmt.Errorf("row %d: path cannot be empty", i+2)
		}
		if !strings.HasPrefix(target.Path, "/") {
			target.Path = "/" + target.Path
		}
		if hasMethod {
			target.Method = strings.ToUpper(strings.TrimSpace(row[methodCol]))
		}
		if hasWeight && strings.TrimSpace(row[weightCol]) != "" {
			w, err := strconv.Atoi(strings.TrimSpace(row[weightCol]))
			if err != nil || w < 1 {
				return nil, fmt.Errorf("row %d: weight must be a positive integer", i+2)
			}
			target.Weight = w
		}
		idx := len(f.targets)
		f.targets = append(f.targets, target)
		for n := 0; n < target.Weight; n++ {
			f.order = append(f.order, idx)
		}
	}

	return f, nil
}

// Next returns the next target in rotation, or ErrExhausted once the
// rotation ends and rewind is off.
func (f *CSVFeeder) Next() (Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index >= len(f.order) {
		if !f.rewind {
			return Target{}, ErrExhausted
		}
		f.index = 0
	}
	target := f.targets[f.order[f.index]]
	f.index++
	return target, nil
}

// Len returns the number of distinct targets.
func (f *CSVFeeder) Len() int {
	return len(f.targets)
}
