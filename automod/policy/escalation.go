package policy

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	BaseWarn    = "warn_user"
	BaseTimeout = "timeout_member"
)

var (
	segmentRegex   = regexp.MustCompile(`^(\d+)\s*->\s*(.+)$`)
	segmentSplitRe = regexp.MustCompile(`[;,]`)
)

// One follow-up action which fires when the windowed count of a base action reaches exactly Count.
type Threshold struct {
	Count    int
	FollowUp string
}

// Windowed thresholds, keyed by canonical base action name. Each list is sorted ascending by count.
type EscalationPolicy struct {
	WindowMinutes int
	Thresholds    map[string][]Threshold
}

// Thresholds configured for a base action (nil if none).
func (e *EscalationPolicy) For(base string) []Threshold {
	if e.Thresholds == nil {
		return nil
	}
	return e.Thresholds[base]
}

// First threshold with a count strictly greater than the given count, if any.
func (e *EscalationPolicy) NextThreshold(base string, count int) (Threshold, bool) {
	for _, t := range e.For(base) {
		if t.Count > count {
			return t, true
		}
	}
	return Threshold{}, false
}

// Sorted list of base actions that have thresholds configured.
func (e *EscalationPolicy) BaseActions() []string {
	out := make([]string, 0, len(e.Thresholds))
	for k := range e.Thresholds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Maps policy document keys to canonical base action names. Unknown keys return an empty string and are dropped by the parser.
func canonicalBase(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "warns", "warnings":
		return BaseWarn
	case "timeouts":
		return BaseTimeout
	default:
		return ""
	}
}

func ParseEscalation(raw RawEscalation) (*EscalationPolicy, error) {
	if raw.WindowMinutes <= 0 {
		return nil, &ValidationError{Field: "escalation.window_minutes", Message: "must be a positive number of minutes"}
	}
	esc := EscalationPolicy{
		WindowMinutes: raw.WindowMinutes,
		Thresholds:    make(map[string][]Threshold),
	}
	for key, segments := range raw.Thresholds {
		base := canonicalBase(key)
		if base == "" {
			continue
		}
		for _, seg := range segments {
			m := segmentRegex.FindStringSubmatch(strings.TrimSpace(seg))
			if m == nil {
				continue
			}
			cnt, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			esc.Thresholds[base] = append(esc.Thresholds[base], Threshold{
				Count:    cnt,
				FollowUp: strings.TrimSpace(m[2]),
			})
		}
	}
	for base := range esc.Thresholds {
		sort.SliceStable(esc.Thresholds[base], func(i, j int) bool {
			return esc.Thresholds[base][i].Count < esc.Thresholds[base][j].Count
		})
	}
	return &esc, nil
}

// Splits a single-string threshold expression into segments on ';' or ','.
func splitSegments(expr string) []string {
	out := []string{}
	for _, s := range segmentSplitRe.Split(expr, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
