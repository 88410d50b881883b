package policy

import (
	"fmt"
	"strings"
)

// Renders the policy for display. The summary form has one line per rule followed by the escalation table. The detail form lists each rule with its actions on a separate line.
func FormatRules(p *Policy, detail bool) string {
	lines := []string{}
	for _, r := range p.Rules {
		actions := strings.Join(r.Actions, ", ")
		if detail {
			lines = append(lines, fmt.Sprintf("- %s: %s\n    actions: %s", r.Name, r.Range(), actions))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %s -> %s", r.Name, r.Range(), actions))
		}
	}
	bases := p.Escalation.BaseActions()
	if len(bases) == 0 {
		return strings.Join(lines, "\n")
	}
	lines = append(lines, "")
	if !detail {
		lines = append(lines, fmt.Sprintf("Escalation window: %d min", p.Escalation.WindowMinutes))
		for _, base := range bases {
			parts := []string{}
			for _, t := range p.Escalation.Thresholds[base] {
				parts = append(parts, fmt.Sprintf("%d -> %s", t.Count, t.FollowUp))
			}
			lines = append(lines, fmt.Sprintf("%s: %s", base, strings.Join(parts, "; ")))
		}
		return strings.Join(lines, "\n")
	}
	lines = append(lines, "Escalation Thresholds:")
	lines = append(lines, fmt.Sprintf("  window_minutes: %d", p.Escalation.WindowMinutes))
	for _, base := range bases {
		for _, t := range p.Escalation.Thresholds[base] {
			lines = append(lines, fmt.Sprintf("  - %s count==%d => %s", base, t.Count, t.FollowUp))
		}
	}
	return strings.Join(lines, "\n")
}
