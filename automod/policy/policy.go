package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var conditionRegex = regexp.MustCompile(`^(?:toxicity\s*>=\s*(0(?:\.\d+)?|1(?:\.0+)?)|(0(?:\.\d+)?|1(?:\.0+)?)\s*<=\s*toxicity\s*<\s*(0(?:\.\d+)?|1(?:\.0+)?))$`)

// Returned for any malformed policy document content. Fatal at startup.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid moderation policy: " + e.Message
	}
	return fmt.Sprintf("invalid moderation policy: %s: %s", e.Field, e.Message)
}

// A toxicity-range rule mapping to an ordered list of action strings.
//
// Immutable after construction.
type Rule struct {
	Name         string
	Condition    string
	MinInclusive float64
	// nil means no upper bound
	MaxExclusive *float64
	Actions      []string
}

// Inclusive lower bound, exclusive upper bound.
func (r *Rule) Matches(toxicity float64) bool {
	if toxicity < r.MinInclusive {
		return false
	}
	if r.MaxExclusive != nil && toxicity >= *r.MaxExclusive {
		return false
	}
	return true
}

// Human-readable range, for listings.
func (r *Rule) Range() string {
	if r.MaxExclusive == nil {
		return fmt.Sprintf("toxicity >= %.2f", r.MinInclusive)
	}
	return fmt.Sprintf("%.2f <= toxicity < %.2f", r.MinInclusive, *r.MaxExclusive)
}

type AppealsPolicy struct {
	Channel       string
	RetentionDays int
}

type Policy struct {
	Rules       []Rule
	Escalation  EscalationPolicy
	ExemptRoles []string
	Appeals     AppealsPolicy
}

// Returns the first rule (in declared order) whose range contains the score, and its actions. Returns nil and an empty list if nothing matches.
func (p *Policy) Evaluate(toxicity float64) (*Rule, []string) {
	for i := range p.Rules {
		if p.Rules[i].Matches(toxicity) {
			return &p.Rules[i], p.Rules[i].Actions
		}
	}
	return nil, []string{}
}

// Case-insensitive role exemption check.
func (p *Policy) IsExemptRole(role string) bool {
	for _, r := range p.ExemptRoles {
		if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(role)) {
			return true
		}
	}
	return false
}

// Parses and validates a single rule.
func ParseRule(raw RawRule) (*Rule, error) {
	if strings.TrimSpace(raw.Name) == "" {
		return nil, &ValidationError{Field: "rules.name", Message: "rule name is required"}
	}
	cond := strings.TrimSpace(raw.If)
	m := conditionRegex.FindStringSubmatch(cond)
	if m == nil {
		return nil, &ValidationError{
			Field:   fmt.Sprintf("rules[%s].if", raw.Name),
			Message: "condition must be of form 'toxicity >= X' or 'A <= toxicity < B' with 0-1 floats",
		}
	}
	rule := Rule{
		Name:      raw.Name,
		Condition: cond,
		Actions:   make([]string, 0, len(raw.Actions)),
	}
	for _, a := range raw.Actions {
		a = strings.TrimSpace(a)
		if a != "" {
			rule.Actions = append(rule.Actions, a)
		}
	}
	if m[1] != "" {
		low, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("rules[%s].if", raw.Name), Message: err.Error()}
		}
		rule.MinInclusive = low
		return &rule, nil
	}
	low, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil, &ValidationError{Field: fmt.Sprintf("rules[%s].if", raw.Name), Message: err.Error()}
	}
	high, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return nil, &ValidationError{Field: fmt.Sprintf("rules[%s].if", raw.Name), Message: err.Error()}
	}
	if !(0.0 <= low && low < high && high <= 1.0) {
		return nil, &ValidationError{Field: fmt.Sprintf("rules[%s].if", raw.Name), Message: "invalid toxicity bounds"}
	}
	rule.MinInclusive = low
	rule.MaxExclusive = &high
	return &rule, nil
}

// Builds a policy from the raw document. Any validation failure is returned as a *ValidationError.
func Parse(raw RawPolicy) (*Policy, error) {
	if len(raw.Rules) == 0 {
		return nil, &ValidationError{Field: "rules", Message: "at least one rule is required"}
	}
	p := Policy{
		Rules:       make([]Rule, 0, len(raw.Rules)),
		ExemptRoles: raw.ExemptRoles,
	}
	for _, rr := range raw.Rules {
		r, err := ParseRule(rr)
		if err != nil {
			return nil, err
		}
		p.Rules = append(p.Rules, *r)
	}
	esc, err := ParseEscalation(raw.Escalation)
	if err != nil {
		return nil, err
	}
	p.Escalation = *esc
	if raw.Appeals.Channel == "" {
		return nil, &ValidationError{Field: "appeals.channel", Message: "appeals channel is required"}
	}
	if raw.Appeals.RetentionDays < 0 {
		return nil, &ValidationError{Field: "appeals.retention_days", Message: "must not be negative"}
	}
	p.Appeals = AppealsPolicy{
		Channel:       raw.Appeals.Channel,
		RetentionDays: raw.Appeals.RetentionDays,
	}
	if p.ExemptRoles == nil {
		p.ExemptRoles = []string{}
	}
	return &p, nil
}
