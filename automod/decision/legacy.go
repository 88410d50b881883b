package decision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	DecisionWarn     = "warn"
	DecisionIgnore   = "ignore"
	DecisionEscalate = "escalate"
	DecisionDelete   = "delete"
)

var decisionKeyword = regexp.MustCompile(`(?i)\b(warn|ignore|escalate|delete)\b`)

type LegacyDecision struct {
	// one of the Decision* constants, or empty when nothing could be parsed
	Decision   string   `json:"decision"`
	Reason     string   `json:"reason,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func validDecision(d string) bool {
	switch d {
	case DecisionWarn, DecisionIgnore, DecisionEscalate, DecisionDelete:
		return true
	}
	return false
}

// Parses a single-decision reply: strict JSON (after fence cleanup), then a case-insensitive keyword search over the raw text.
func ParseLegacyDecision(raw string) LegacyDecision {
	if v, ok := ParseLoose(raw); ok {
		if m, ok := v.(map[string]any); ok {
			d, _ := m["decision"].(string)
			d = strings.ToLower(strings.TrimSpace(d))
			if validDecision(d) {
				out := LegacyDecision{Decision: d}
				out.Reason, _ = m["reason"].(string)
				if c, ok := m["confidence"].(float64); ok {
					out.Confidence = &c
				}
				return out
			}
		}
	}
	if m := decisionKeyword.FindStringSubmatch(raw); m != nil {
		return LegacyDecision{Decision: strings.ToLower(m[1])}
	}
	return LegacyDecision{}
}

func LegacyPrompt(content string, toxicity float64) string {
	quoted, err := json.Marshal(content)
	if err != nil {
		quoted = []byte(`""`)
	}
	return "Borderline moderation decision. Decide if the message should receive a warning, be escalated, or ignored.\n" +
		"Return STRICT JSON: { 'decision': 'warn|ignore|escalate|delete', 'reason': 'brief rationale', 'confidence': 0.0-1.0 }\n" +
		fmt.Sprintf("ToxicityScore: %.2f\nMessage: ", toxicity) +
		string(quoted) +
		"\nIf it clearly violates severe rules suggest 'escalate' only if human review is needed. Use 'warn' for mild breach; 'ignore' if compliant."
}
