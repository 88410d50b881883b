package policy

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRuleRangeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("bounded rule matches exactly [low, high)", prop.ForAll(
		func(low, width, score float64) bool {
			high := low + width
			if high > 1.0 || width <= 0 {
				return true
			}
			r, err := ParseRule(RawRule{Name: "r", If: fmt.Sprintf("%.2f <= toxicity < %.2f", low, high)})
			if err != nil {
				// rounding may collapse the range
				return true
			}
			want := score >= r.MinInclusive && score < *r.MaxExclusive
			return r.Matches(score) == want
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0.01, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(score float64) bool {
			p, err := Parse(RawPolicy{
				Rules: []RawRule{
					{Name: "a", If: "0.2 <= toxicity < 0.6", Actions: []string{"warn_user"}},
					{Name: "b", If: "toxicity >= 0.6", Actions: []string{"delete_message"}},
				},
				Escalation: RawEscalation{WindowMinutes: 60},
				Appeals:    RawAppeals{Channel: "appeals"},
			})
			if err != nil {
				return false
			}
			r1, a1 := p.Evaluate(score)
			r2, a2 := p.Evaluate(score)
			if r1 != r2 || len(a1) != len(a2) {
				return false
			}
			if score < 0.2 {
				return r1 == nil
			}
			return r1 != nil
		},
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
