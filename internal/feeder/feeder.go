// Package feeder supplies request targets for the load runner: fixed paths,
// CSV datasets, or HAR imports, selected by weighted random draw.
package feeder

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// Target is one request the runner can issue.
type Target struct {
	Path    string
	Method  string
	Headers map[string]string
	Weight  int
}

// Feeder yields targets. Implementations must be safe for concurrent use.
type Feeder interface {
	// Next returns a target, or ErrExhausted when the dataset is spent.
	Next() (Target, error)

	// Len returns the number of distinct targets.
	Len() int
}

// ErrExhausted is returned when a feeder has no more targets to give.
var ErrExhausted = fmt.Errorf("feeder exhausted: no more targets available")

// Static serves a fixed target set forever, drawing by weight.
type Static struct {
	mu      sync.Mutex
	targets []Target
	weights []int
	total   int
	rng     *rand.Rand
}

// NewStatic builds a weighted feeder over targets. Missing weights count as
// 1; missing methods count as GET.
func NewStatic(targets []Target, seed int64) (*Static, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one target is required")
	}
	s := &Static{rng: rand.New(rand.NewSource(seed))}
	for _, t := range targets {
		if strings.TrimSpace(t.Path) == "" {
			return nil, fmt.Errorf("target path cannot be empty")
		}
		if t.Weight <= 0 {
			t.Weight = 1
		}
		s.targets = append(s.targets, t)
		s.weights = append(s.weights, t.Weight)
		s.total += t.Weight
	}
	return s, nil
}

// FromPaths wraps a plain path list as a Static feeder with equal weights.
func FromPaths(paths []string, seed int64) (*Static, error) {
	targets := make([]Target, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		targets = append(targets, Target{Path: p})
	}
	if len(targets) == 0 {
		targets = append(targets, Target{Path: "/"})
	}
	return NewStatic(targets, seed)
}

// Next draws one target by weight. Static never exhausts.
func (s *Static) Next() (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.targets) == 1 {
		return s.targets[0], nil
	}
	pick := s.rng.Intn(s.total)
	for i, w := range s.weights {
		pick -= w
		if pick < 0 {
			return s.targets[i], nil
		}
	}
	return s.targets[len(s.targets)-1], nil
}

// Len returns the number of distinct targets.
func (s *Static) Len() int {
	return len(s.targets)
}
