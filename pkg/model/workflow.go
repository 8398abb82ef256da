package model

import (
	"encoding/json"
	"time"
)

// Workflow is a parsed ComfyUI node-graph document stored in ComfyFlow.
// RawGraph holds the original upload verbatim; it is the immutable ground
// truth that every run clones before mutating.
type Workflow struct {
	ID          string          `json:"workflow_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ContentHash string          `json:"content_hash,omitempty"` // SHA-256 of RawGraph for deduplication
	RawGraph    json.RawMessage `json:"-"`                      // Original graph document (not exposed in list views)
	Nodes       []Node          `json:"nodes"`
	Parameters  ParameterLookup `json:"parameterLookup"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ParsedWorkflow is the output of normalization plus extraction, before any
// persistence metadata is attached.
type ParsedWorkflow struct {
	WorkflowID string          `json:"workflow_id"`
	Nodes      []Node          `json:"nodes"`
	Parameters ParameterLookup `json:"parameterLookup"`
}

// Node is one normalized graph node. Key is unique per document and is the
// prefix of every parameter path exposed from this node.
type Node struct {
	ID      *float64    `json:"id"`
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Key     string      `json:"key"`
	Inputs  []Parameter `json:"inputs"`
	Outputs []Output    `json:"outputs"`
}

// Output describes one node output slot.
type Output struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// ParamSource identifies which representation a parameter was discovered in.
type ParamSource string

const (
	SourceWidget      ParamSource = "widget"
	SourceInput       ParamSource = "input"
	SourceInputObject ParamSource = "input-object"
)

// ParamType is the inferred semantic type of a parameter.
type ParamType string

const (
	TypeNumber       ParamType = "number"
	TypeBoolean      ParamType = "boolean"
	TypeImage        ParamType = "image"
	TypeTensor       ParamType = "tensor"
	TypeConditioning ParamType = "conditioning"
	TypeString       ParamType = "string"
	TypeModel        ParamType = "model"
	TypeLatent       ParamType = "latent"
	TypeArray        ParamType = "array"
	TypeObject       ParamType = "object"
)

// Parameter is a UI-exposable value discovered on a node. Path is the stable
// external identifier "<nodeKey>.<paramKey>" referenced by bindings.
type Parameter struct {
	ID           string      `json:"id"`
	Key          string      `json:"key"`
	Label        string      `json:"label"`
	Type         ParamType   `json:"type"`
	Default      any         `json:"default"`
	Path         string      `json:"path"`
	Source       ParamSource `json:"source"`
	WidgetIndex  *int        `json:"widgetIndex,omitempty"`
	InputIndex   *int        `json:"inputIndex,omitempty"`
	OriginalName string      `json:"originalName,omitempty"`
}

// ParameterMeta is the lookup record consulted when a UI value is written
// back into the graph. It mirrors Parameter minus node-local context.
type ParameterMeta struct {
	NodeID       *float64    `json:"nodeId"`
	NodeKey      string      `json:"nodeKey"`
	NodeLabel    string      `json:"nodeLabel"`
	ParamKey     string      `json:"paramKey"`
	Label        string      `json:"label"`
	Type         ParamType   `json:"type"`
	Default      any         `json:"default"`
	Source       ParamSource `json:"source"`
	WidgetIndex  *int        `json:"widgetIndex,omitempty"`
	InputIndex   *int        `json:"inputIndex,omitempty"`
	OriginalName string      `json:"originalName,omitempty"`
}

// ParameterLookup maps a parameter path to its write-back metadata. It is
// persisted with the workflow and never regenerated from the UI.
type ParameterLookup map[string]ParameterMeta

// Binding associates a UI component id with a parameter path. ValueFrom
// optionally holds a JS expression applied to the component's value before
// the payload is built.
type Binding struct {
	ComponentID string `json:"component_id"`
	BindTo      string `json:"bind_to"`
	ValueFrom   string `json:"value_from,omitempty"`
}

// CascaderNode is one top-level entry of the parameter-picker tree.
type CascaderNode struct {
	Label    string           `json:"label"`
	Value    string           `json:"value"`
	Children []CascaderOption `json:"children"`
}

// CascaderOption is one selectable parameter inside a CascaderNode.
type CascaderOption struct {
	Label   string    `json:"label"`
	Value   string    `json:"value"`
	Type    ParamType `json:"type"`
	Default any       `json:"default"`
	NodeID  *float64  `json:"nodeId"`
	NodeKey string    `json:"nodeKey"`
}
