package decision

import "reflect"

type Param struct {
	Name        string
	Kind        reflect.Kind
	Required    bool
	Description string
}

// Declared shape of one tool, as exposed in the decision-service catalog.
type ToolSpec struct {
	Name        string
	Description string
	Params      []Param
}

func jsonType(k reflect.Kind) string {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	default:
		return "string"
	}
}

func (ts ToolSpec) Catalog() map[string]any {
	props := map[string]any{}
	required := []string{}
	for _, p := range ts.Params {
		prop := map[string]any{"type": jsonType(p.Kind)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"name":        ts.Name,
		"description": ts.Description,
		"parameters": map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

func CatalogFromSpecs(specs []ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Catalog())
	}
	return out
}
