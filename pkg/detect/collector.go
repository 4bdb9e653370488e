package detect

import (
	"cmp"
	"slices"
	"sync"
)

// Collector is a Reporter that accumulates findings and missing-class
// conditions in memory. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	findings []Finding
	missing  []MissingClass
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report records one finding.
func (c *Collector) Report(f Finding) {
	c.mu.Lock()
	c.findings = append(c.findings, f)
	c.mu.Unlock()
}

// ReportMissingClass records a failed class metadata resolution.
func (c *Collector) ReportMissingClass(className string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.mu.Lock()
	c.missing = append(c.missing, MissingClass{ClassName: className, Error: msg})
	c.mu.Unlock()
}

// Findings returns the collected findings ordered by class, method, and PC
// so output is deterministic under parallel analysis.
func (c *Collector) Findings() []Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(c.findings)
	slices.SortFunc(out, func(a, b Finding) int {
		if v := cmp.Compare(a.ClassName, b.ClassName); v != 0 {
			return v
		}
		if v := cmp.Compare(a.MethodName, b.MethodName); v != 0 {
			return v
		}
		if v := cmp.Compare(a.MethodDescriptor, b.MethodDescriptor); v != 0 {
			return v
		}
		return cmp.Compare(a.PC, b.PC)
	})
	return out
}

// MissingClasses returns the recorded resolution failures, deduplicated
// by class name and sorted.
func (c *Collector) MissingClasses() []MissingClass {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(c.missing))
	out := make([]MissingClass, 0, len(c.missing))
	for _, m := range c.missing {
		if seen[m.ClassName] {
			continue
		}
		seen[m.ClassName] = true
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b MissingClass) int {
		return cmp.Compare(a.ClassName, b.ClassName)
	})
	return out
}
