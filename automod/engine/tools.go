package engine

import (
	"reflect"

	"github.com/modbot-dev/modbot/automod/decision"
)

// Tool declarations for the decision-service catalog: the five action kinds as tools, plus ignore.
func ToolSpecs() []decision.ToolSpec {
	return []decision.ToolSpec{
		{
			Name:        decision.ToolDeleteMessage,
			Description: "Deletes the offending message.",
		},
		{
			Name:        decision.ToolWarnUser,
			Description: "Warns the user with a reason.",
			Params: []decision.Param{
				{Name: "reason", Kind: reflect.String, Required: true},
			},
		},
		{
			Name:        decision.ToolTimeoutMember,
			Description: "Timeouts the user.",
			Params: []decision.Param{
				{Name: "duration_minutes", Kind: reflect.Int, Required: true},
				{Name: "reason", Kind: reflect.String, Required: true},
			},
		},
		{
			Name:        decision.ToolEscalate,
			Description: "Escalates the message to human moderators.",
			Params: []decision.Param{
				{Name: "label", Kind: reflect.String, Required: true},
				{Name: "reason", Kind: reflect.String},
			},
		},
		{
			Name:        decision.ToolIgnore,
			Description: "No action taken.",
		},
	}
}

func ToolCatalog() []map[string]any {
	return decision.CatalogFromSpecs(ToolSpecs())
}
