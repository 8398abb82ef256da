package graph

import (
	"strings"

	"github.com/me/comfyflow/pkg/model"
)

// typeHints maps case-insensitive substrings of a declared type to the
// inferred semantic type. Order matters: the first match wins, so a hint
// like "INT" resolves to number even when the literal value is a string.
var typeHints = []struct {
	substr string
	typ    model.ParamType
}{
	{"float", model.TypeNumber},
	{"int", model.TypeNumber},
	{"number", model.TypeNumber},
	{"bool", model.TypeBoolean},
	{"image", model.TypeImage},
	{"tensor", model.TypeTensor},
	{"conditioning", model.TypeConditioning},
	{"string", model.TypeString},
	{"text", model.TypeString},
	{"model", model.TypeModel},
	{"latent", model.TypeLatent},
}

// InferType resolves a parameter's semantic type from its declared type
// hint, falling back to the shape of the literal value when the hint is
// empty or unrecognized.
func InferType(hint string, value any) model.ParamType {
	h := strings.ToLower(hint)
	if h != "" {
		for _, entry := range typeHints {
			if strings.Contains(h, entry.substr) {
				return entry.typ
			}
		}
	}

	switch value.(type) {
	case float64, float32, int, int64:
		return model.TypeNumber
	case bool:
		return model.TypeBoolean
	case []any:
		return model.TypeArray
	case map[string]any:
		return model.TypeObject
	default:
		return model.TypeString
	}
}
