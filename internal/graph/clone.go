package graph

// cloneValue deep-copies a JSON-compatible value tree. Runs mutate a clone
// of the stored document, never the stored document itself, so repeated runs
// against the same workflow stay independent.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = cloneValue(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = cloneValue(item)
		}
		return result
	default:
		return v
	}
}
