// Package report renders the before/after version report of an action.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loykin/servctl/internal/snapshot"
)

// ShortLen is the number of characters kept from digests and image IDs.
const ShortLen = 12

// Status of one component in a report.
type Status string

const (
	Same    Status = "same"
	Changed Status = "changed"
	Added   Status = "new"
	Removed Status = "removed"
)

// Line is one component row of a report.
type Line struct {
	Name   string
	Before string
	After  string
	Status Status
}

func (l Line) String() string {
	switch l.Status {
	case Added:
		return fmt.Sprintf("  - %s: (new) -> %s", l.Name, l.After)
	case Removed:
		return fmt.Sprintf("  - %s: %s -> (removed)", l.Name, l.Before)
	default:
		return fmt.Sprintf("  - %s: %s -> %s (%s)", l.Name, l.Before, l.After, l.Status)
	}
}

// VersionText is the display text of a component: version, else short
// digest, else short image ID, else "unknown".
func VersionText(c snapshot.Component) string {
	if v := strings.TrimSpace(c.Version); v != "" {
		return v
	}
	if d := strings.TrimSpace(c.Digest); d != "" {
		return "digest:" + short(d)
	}
	if id := strings.TrimSpace(c.ImageID); id != "" {
		return "image:" + short(id)
	}
	return "unknown"
}

// Diff compares the components of two inspections. The image ID is the
// authoritative change signal; the version text is compared for display.
func Diff(before, after map[string]snapshot.Component) []Line {
	names := make(map[string]bool, len(before)+len(after))
	for n := range before {
		names[n] = true
	}
	for n := range after {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	lines := make([]Line, 0, len(sorted))
	for _, n := range sorted {
		b, inBefore := before[n]
		a, inAfter := after[n]
		switch {
		case inBefore && inAfter:
			l := Line{Name: n, Before: VersionText(b), After: VersionText(a), Status: Same}
			if l.Before != l.After || b.ImageID != a.ImageID {
				l.Status = Changed
			}
			lines = append(lines, l)
		case inAfter:
			lines = append(lines, Line{Name: n, After: VersionText(a), Status: Added})
		default:
			lines = append(lines, Line{Name: n, Before: VersionText(b), Status: Removed})
		}
	}
	return lines
}

// Changes counts the lines that are not Same.
func Changes(lines []Line) int {
	n := 0
	for _, l := range lines {
		if l.Status != Same {
			n++
		}
	}
	return n
}

// Render produces the report lines for one action run.
func Render(key string, before, after snapshot.Snapshot, action string, exitCode int) []string {
	out := []string{
		"[VERSION_REPORT]",
		"- target: " + key,
		"- action: " + action,
	}
	if exitCode == 0 {
		out = append(out, "- result: success")
	} else {
		out = append(out, fmt.Sprintf("- result: failed (exit %d)", exitCode))
	}

	if before.Inspection != nil && after.Inspection != nil {
		lines := Diff(before.Inspection.Components, after.Inspection.Components)
		if len(lines) > 0 {
			out = append(out, "- components:")
			for _, l := range lines {
				out = append(out, l.String())
			}
		}
	}

	if before.Probe != nil || after.Probe != nil {
		b, a := probeOutput(before.Probe), probeOutput(after.Probe)
		if b != "" || a != "" {
			out = append(out,
				"- custom_version:",
				"  - before: "+orDash(b),
				"  - after: "+orDash(a),
			)
		}
	}
	return out
}

func probeOutput(p *snapshot.Probe) string {
	if p == nil {
		return ""
	}
	return p.Output
}

func short(s string) string {
	if len(s) <= ShortLen {
		return s
	}
	return s[:ShortLen]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
