package risk

import (
	"fmt"
	"sort"
)

// Category names the kind of active content a finding describes.
type Category string

const (
	JavaScript             Category = "JavaScript"
	LaunchAction           Category = "LaunchAction"
	ExternalURI            Category = "ExternalURI"
	EmbeddedFile           Category = "EmbeddedFile"
	SuspiciousObjectStream Category = "SuspiciousObjectStream"
)

// Severity ranks findings. The zero value is not a valid severity.
type Severity int

const (
	Low Severity = iota + 1
	Medium
	High
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Location is where a finding was made: an indirect object and the key
// path inside it. Object 0 is the trailer.
type Location struct {
	Object int
	Path   string
}

func (l Location) String() string {
	base := "trailer"
	if l.Object > 0 {
		base = fmt.Sprintf("%d 0 R", l.Object)
	}
	if l.Path == "" {
		return base
	}
	return base + " " + l.Path
}

// Finding is one detected construct. Findings are values and are never
// modified after a scan returns them.
type Finding struct {
	Category    Category
	Location    Location
	Severity    Severity
	Weight      int
	Description string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s at %s: %s", f.Severity, f.Category, f.Location, f.Description)
}

// Report is the result of a scan: findings ordered by severity, highest
// first, then by object number, and a score from 0 to 100.
type Report struct {
	Findings []Finding
	Score    int
}

// Has reports whether any finding has category c.
func (r *Report) Has(c Category) bool {
	for _, f := range r.Findings {
		if f.Category == c {
			return true
		}
	}
	return false
}

// Highest returns the highest severity found, or 0 for a clean report.
func (r *Report) Highest() Severity {
	if len(r.Findings) == 0 {
		return 0
	}
	return r.Findings[0].Severity
}

// ByCategory groups the findings by category.
func (r *Report) ByCategory() map[Category][]Finding {
	out := make(map[Category][]Finding)
	for _, f := range r.Findings {
		out[f.Category] = append(out[f.Category], f)
	}
	return out
}

type findingKey struct {
	category    Category
	location    Location
	description string
}

// newReport deduplicates findings, orders them and computes the score.
func newReport(findings []Finding) *Report {
	seen := make(map[findingKey]bool, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		k := findingKey{f.Category, f.Location, f.Description}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Location.Object != b.Location.Object {
			return a.Location.Object < b.Location.Object
		}
		if a.Location.Path != b.Location.Path {
			return a.Location.Path < b.Location.Path
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Description < b.Description
	})

	score := 0
	for _, f := range out {
		score += f.Weight
	}
	if score > 100 {
		score = 100
	}
	return &Report{Findings: out, Score: score}
}
