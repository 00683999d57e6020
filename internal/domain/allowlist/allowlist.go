// Package allowlist holds the fixed set of "major" neighbourhood labels that
// pass through preprocessing verbatim.
package allowlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// AllowList is an immutable, ordered set of labels. Safe for concurrent reads.
type AllowList struct {
	labels []string
	set    map[string]struct{}
}

// New builds an allow-list from labels. Duplicates collapse into one entry;
// Labels keeps first-occurrence order.
func New(labels ...string) *AllowList {
	a := &AllowList{
		labels: make([]string, 0, len(labels)),
		set:    make(map[string]struct{}, len(labels)),
	}
	for _, l := range labels {
		if _, ok := a.set[l]; ok {
			continue
		}
		a.set[l] = struct{}{}
		a.labels = append(a.labels, l)
	}
	return a
}

// Load reads one label per line, trimming surrounding whitespace.
//
// Empty lines are kept as the empty label, so a row whose neighbourhood is
// the empty string is treated as a major neighbourhood. A newline that
// terminates the last line does not add a label.
func Load(r io.Reader) (*AllowList, error) {
	var labels []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		labels = append(labels, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read allow-list: %w", err)
	}
	return New(labels...), nil
}

// Contains reports whether label is a major neighbourhood.
func (a *AllowList) Contains(label string) bool {
	_, ok := a.set[label]
	return ok
}

// Labels returns the distinct labels in file order.
func (a *AllowList) Labels() []string {
	out := make([]string, len(a.labels))
	copy(out, a.labels)
	return out
}

// Len returns the number of distinct labels.
func (a *AllowList) Len() int { return len(a.labels) }
