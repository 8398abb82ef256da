package graph

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/me/comfyflow/pkg/model"
)

// StoredWorkflow is the persisted record a run is built against: the
// original raw document plus the parameter lookup produced at parse time.
type StoredWorkflow struct {
	WorkflowID string
	RawGraph   map[string]any
	Parameters model.ParameterLookup
}

// UnmarshalJSON accepts both the current and the legacy field names
// ("workflow_id"/"workflowId", "parameterLookup"/"parameters",
// "rawWorkflow"/"raw_graph") so records persisted by earlier versions keep
// loading.
func (s *StoredWorkflow) UnmarshalJSON(data []byte) error {
	var raw struct {
		WorkflowID   string                `json:"workflow_id"`
		WorkflowIDCC string                `json:"workflowId"`
		RawGraph     map[string]any        `json:"raw_graph"`
		RawWorkflow  map[string]any        `json:"rawWorkflow"`
		Parameters   model.ParameterLookup `json:"parameters"`
		Lookup       model.ParameterLookup `json:"parameterLookup"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.WorkflowID = raw.WorkflowID
	if s.WorkflowID == "" {
		s.WorkflowID = raw.WorkflowIDCC
	}
	s.RawGraph = raw.RawGraph
	if s.RawGraph == nil {
		s.RawGraph = raw.RawWorkflow
	}
	s.Parameters = raw.Lookup
	if s.Parameters == nil {
		s.Parameters = raw.Parameters
	}
	return nil
}

// ExecutionPayload is the result of mapping UI values back into the graph:
// the resolved path->value inputs plus a mutated clone of the original
// document, ready for submission to the execution engine.
type ExecutionPayload struct {
	WorkflowID string         `json:"workflow_id"`
	Inputs     map[string]any `json:"inputs"`
	Workflow   map[string]any `json:"workflow"`
}

// BuildPayload maps UI-collected values back into a deep copy of the stored
// raw document. Values are keyed either directly by parameter path or by a
// UI component id that a binding re-keys to a path; binding-derived values
// win over same-named direct keys. Values whose path is not in the lookup
// are dropped silently — the UI may send stale keys from an older layout.
func BuildPayload(bindings []model.Binding, values map[string]any, stored *StoredWorkflow) (*ExecutionPayload, error) {
	if stored == nil || stored.RawGraph == nil {
		return nil, ErrMissingWorkflow
	}

	workflowID := stored.WorkflowID
	if workflowID == "" {
		workflowID = "wf_" + uuid.New().String()
	}

	clone := cloneValue(stored.RawGraph).(map[string]any)

	// Re-key: direct path keys first, then bindings on top.
	valuesByPath := make(map[string]any, len(values))
	for k, v := range values {
		valuesByPath[k] = v
	}
	for _, b := range bindings {
		if v, ok := values[b.ComponentID]; ok {
			valuesByPath[b.BindTo] = v
		}
	}

	inputs := make(map[string]any, len(valuesByPath))
	for path, value := range valuesByPath {
		meta, ok := stored.Parameters[path]
		if !ok {
			continue
		}
		inputs[path] = value
		if meta.NodeID == nil {
			continue
		}
		if target := findNode(clone, *meta.NodeID); target != nil {
			applyValue(target, meta, value)
		}
	}

	return &ExecutionPayload{
		WorkflowID: workflowID,
		Inputs:     inputs,
		Workflow:   clone,
	}, nil
}

// findNode locates a node in the cloned document by exact numeric id.
func findNode(doc map[string]any, id float64) map[string]any {
	for _, node := range nodesOf(doc) {
		if nid := nodeID(node); nid != nil && *nid == id {
			return node
		}
	}
	return nil
}

// applyValue writes a value into the node using the inverse of the mapping
// the extractor recorded: same index semantics, same key semantics.
func applyValue(node map[string]any, meta model.ParameterMeta, value any) {
	switch meta.Source {
	case model.SourceWidget:
		if meta.WidgetIndex == nil {
			return
		}
		idx := *meta.WidgetIndex
		values, _ := node["widgets_values"].([]any)
		for len(values) <= idx {
			values = append(values, nil)
		}
		values[idx] = value
		node["widgets_values"] = values

	case model.SourceInput:
		if meta.InputIndex == nil {
			return
		}
		inputs, ok := node["inputs"].([]any)
		if !ok || *meta.InputIndex >= len(inputs) {
			return
		}
		entry, ok := inputs[*meta.InputIndex].(map[string]any)
		if !ok {
			return
		}
		// The literal value now supersedes any graph wiring.
		delete(entry, "link")
		entry["value"] = value

	case model.SourceInputObject:
		inputs, ok := node["inputs"].(map[string]any)
		if !ok {
			inputs = make(map[string]any)
			node["inputs"] = inputs
		}
		inputs[meta.OriginalName] = value
	}
}
