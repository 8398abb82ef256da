// Package graph turns raw ComfyUI node-graph documents into normalized
// workflows with stable parameter paths, and maps UI-collected values back
// into an executable copy of the original document.
//
// Input documents come from a third-party visual editor whose exports are
// inconsistent: nodes may arrive as an array or a keyed map, ids may be
// missing or duplicated, and inputs show up in three different shapes.
// Parsing is therefore deliberately permissive; the only fatal condition is
// a missing document.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/me/comfyflow/pkg/model"
)

// ErrInvalidWorkflow is returned when the top-level document is absent.
var ErrInvalidWorkflow = errors.New("invalid workflow format")

// ErrMissingWorkflow is returned when payload construction is attempted
// without a stored workflow.
var ErrMissingWorkflow = errors.New("workflow input missing")

// Parser converts raw graph documents into parsed workflows.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser with the given logger.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "graph")}
}

// ParseBytes decodes JSON and parses the resulting document.
func (p *Parser) ParseBytes(data []byte) (*model.ParsedWorkflow, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	return p.Parse(doc)
}

// Parse normalizes a raw graph document and extracts its exposed parameters.
// The document itself is never mutated. Malformed per-node data is skipped
// or defaulted; only a nil document is fatal.
func (p *Parser) Parse(doc map[string]any) (*model.ParsedWorkflow, error) {
	if doc == nil {
		return nil, ErrInvalidWorkflow
	}

	workflowID := stringField(doc, "workflow_id")
	if workflowID == "" {
		workflowID = "wf_" + uuid.New().String()
	}

	rawNodes := nodesOf(doc)
	nodes := make([]model.Node, 0, len(rawNodes))
	lookup := make(model.ParameterLookup)
	keys := make(map[string]int, len(rawNodes))

	for _, raw := range rawNodes {
		node := p.normalizeNode(raw, keys)
		p.extractParameters(raw, &node, lookup)
		nodes = append(nodes, node)
	}

	p.logger.Debug("parsed workflow", "workflow_id", workflowID,
		"nodes", len(nodes), "parameters", len(lookup))

	return &model.ParsedWorkflow{
		WorkflowID: workflowID,
		Nodes:      nodes,
		Parameters: lookup,
	}, nil
}

// normalizeNode resolves the node's id, display name and document-unique key.
// keys tracks per-document base-key occurrence counts: the first node with a
// given base keeps it verbatim, the Nth gets a "_N" suffix in arrival order.
func (p *Parser) normalizeNode(raw map[string]any, keys map[string]int) model.Node {
	id := nodeID(raw)
	nodeType := stringField(raw, "type")
	if nodeType == "" {
		nodeType = stringField(raw, "class_type")
	}

	fallback := nodeType
	if fallback == "" {
		fallback = "node_" + numberString(id)
	}

	displayName := stringField(raw, "title")
	if displayName == "" {
		if props := mapField(raw, "properties"); props != nil {
			displayName = stringField(props, "Node name for S&R")
		}
	}
	if displayName == "" {
		displayName = fallback
	}

	base := sanitizeKey(displayName, fallback)
	if base == "" {
		base = sanitizeKey("node_"+numberString(id), "")
	}

	keys[base]++
	key := base
	if n := keys[base]; n > 1 {
		key = base + "_" + strconv.Itoa(n)
	}

	return model.Node{
		ID:      id,
		Name:    displayName,
		Type:    nodeType,
		Key:     key,
		Inputs:  []model.Parameter{},
		Outputs: nodeOutputs(raw),
	}
}

// nodeOutputs projects the declared output slots, tolerating odd shapes.
func nodeOutputs(raw map[string]any) []model.Output {
	outs := sliceField(raw, "outputs")
	if len(outs) == 0 {
		return []model.Output{}
	}
	result := make([]model.Output, 0, len(outs))
	for _, entry := range outs {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		result = append(result, model.Output{
			Key:  stringField(m, "name"),
			Type: stringField(m, "type"),
		})
	}
	return result
}

// nodesOf collapses both document shapes into one ordered node sequence.
// Array documents keep their order; keyed documents are iterated in sorted
// key order (numeric-aware) so the same document always yields the same
// sequence. Entries that are not object-like are filtered out.
func nodesOf(doc map[string]any) []map[string]any {
	switch v := doc["nodes"].(type) {
	case []any:
		nodes := make([]map[string]any, 0, len(v))
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				nodes = append(nodes, m)
			}
		}
		return nodes
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, aerr := strconv.ParseFloat(keys[i], 64)
			b, berr := strconv.ParseFloat(keys[j], 64)
			if aerr == nil && berr == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		nodes := make([]map[string]any, 0, len(keys))
		for _, k := range keys {
			if m, ok := v[k].(map[string]any); ok {
				nodes = append(nodes, m)
			}
		}
		return nodes
	default:
		return nil
	}
}

// nodeID resolves the node's numeric id: the first of id/ID/uid present
// wins; a value that cannot be coerced to a number yields a nil id.
func nodeID(raw map[string]any) *float64 {
	for _, field := range []string{"id", "ID", "uid"} {
		if v, ok := raw[field]; ok {
			return toNumber(v)
		}
	}
	return nil
}
