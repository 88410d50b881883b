package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy document as it appears on disk.
type RawPolicy struct {
	Rules       []RawRule     `yaml:"rules" json:"rules"`
	Escalation  RawEscalation `yaml:"escalation" json:"escalation"`
	ExemptRoles []string      `yaml:"exempt_roles" json:"exempt_roles"`
	Appeals     RawAppeals    `yaml:"appeals" json:"appeals"`
}

type RawRule struct {
	Name    string   `yaml:"name" json:"name"`
	If      string   `yaml:"if" json:"if"`
	Actions []string `yaml:"actions" json:"actions"`
}

type RawEscalation struct {
	WindowMinutes int                      `yaml:"window_minutes" json:"window_minutes"`
	Thresholds    map[string]ThresholdExpr `yaml:"thresholds" json:"thresholds"`
}

type RawAppeals struct {
	Channel       string `yaml:"channel" json:"channel"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
}

// Segments of the form "N -> action". In the document this is either a list of strings or one string with ';' or ',' separators.
type ThresholdExpr []string

func (t *ThresholdExpr) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = splitSegments(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*t = out
		return nil
	default:
		return fmt.Errorf("threshold expression must be a string or list of strings (line %d)", node.Line)
	}
}

// Parses a YAML policy document.
func ParseYAML(buf []byte) (*Policy, error) {
	var raw RawPolicy
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return Parse(raw)
}

// Reads and validates the policy file. Intended to be called once at startup.
func Load(path string) (*Policy, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return ParseYAML(buf)
}
