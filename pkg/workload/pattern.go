package workload

import (
	"errors"
	"fmt"

	"github.com/panbanda/ptile/pkg/tracker"
)

// ErrUnknownPattern is returned when a usage pattern name is not registered.
var ErrUnknownPattern = errors.New("unknown usage pattern")

// Pattern describes an interleaving of inserts and queries: Inserts values
// go in, then Gets queries are made, repeated until the op budget is spent.
type Pattern struct {
	Name    string
	Inserts int
	Gets    int
}

var patterns = []Pattern{
	{Name: "insert_heavy", Inserts: 10, Gets: 1},
	{Name: "balanced", Inserts: 1, Gets: 1},
	{Name: "get_heavy", Inserts: 1, Gets: 10},
}

// Patterns returns every registered usage pattern.
func Patterns() []Pattern {
	out := make([]Pattern, len(patterns))
	copy(out, patterns)
	return out
}

// PatternNames returns the names of every registered usage pattern.
func PatternNames() []string {
	names := make([]string, len(patterns))
	for i, p := range patterns {
		names[i] = p.Name
	}
	return names
}

// LookupPattern finds a usage pattern by name.
func LookupPattern(name string) (Pattern, error) {
	for _, p := range patterns {
		if p.Name == name {
			return p, nil
		}
	}
	return Pattern{}, fmt.Errorf("%w: %q", ErrUnknownPattern, name)
}

// EstimatedInserts is the number of inserts a run of totalOps operations is
// expected to make, ignoring the partial last cycle.
func (p Pattern) EstimatedInserts(totalOps int) int {
	cycle := p.Inserts + p.Gets
	if cycle == 0 {
		return 0
	}
	return totalOps / cycle * p.Inserts
}

// Counts reports how many operations a run performed.
type Counts struct {
	Inserts int
	Gets    int
}

// Ops returns the total operation count.
func (c Counts) Ops() int {
	return c.Inserts + c.Gets
}

// Run drives t through the pattern until totalOps operations are done,
// drawing inserted values from values in order. Queries are only made once
// something has been inserted. Every query result is passed to sink, and a
// final query is always made at the end.
func (p Pattern) Run(t *tracker.Tracker[int64], values []int64, totalOps int, sink func(int64)) Counts {
	var c Counts
	next := 0

	for c.Ops() < totalOps {
		progressed := false

		for i := 0; i < p.Inserts && c.Ops() < totalOps; i++ {
			if next >= len(values) {
				break
			}
			t.Insert(values[next])
			next++
			c.Inserts++
			progressed = true
		}
		if c.Ops() >= totalOps {
			break
		}

		for i := 0; i < p.Gets && c.Ops() < totalOps; i++ {
			if next == 0 {
				break
			}
			query(t, sink)
			c.Gets++
			progressed = true
		}

		if !progressed {
			break
		}
	}

	query(t, sink)
	return c
}

// Stream inserts every value and queries after each one.
func Stream(t *tracker.Tracker[int64], values []int64, sink func(int64)) Counts {
	for _, v := range values {
		t.Insert(v)
		query(t, sink)
	}
	return Counts{Inserts: len(values), Gets: len(values)}
}

func query(t *tracker.Tracker[int64], sink func(int64)) {
	v, err := t.Percentile()
	if err != nil {
		return
	}
	if sink != nil {
		sink(v)
	}
}
