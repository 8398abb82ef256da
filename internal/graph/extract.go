package graph

import (
	"fmt"
	"sort"

	"github.com/me/comfyflow/pkg/model"
)

// extractParameters scans the three parameter representations a raw node can
// carry and appends every discovered parameter to node.Inputs, registering
// it in the document-wide lookup. Source order is fixed: positional widgets,
// then array-style inputs, then object-style inputs.
func (p *Parser) extractParameters(raw map[string]any, node *model.Node, lookup model.ParameterLookup) {
	idOrKey := node.Key
	if node.ID != nil {
		idOrKey = numberString(node.ID)
	}

	// Positional widgets: widgets_values[i] paired with widgets[i] when a
	// descriptor exists. The index is the only write-back handle.
	widgets := sliceField(raw, "widgets")
	for i, value := range sliceField(raw, "widgets_values") {
		name, hint := widgetDescriptor(widgets, i)
		label := name
		if label == "" {
			label = fmt.Sprintf("参数%d", i+1)
		}
		idx := i
		p.register(node, lookup, model.Parameter{
			ID:          fmt.Sprintf("%s_widget_%d", idOrKey, i),
			Key:         sanitizeKey(name, fmt.Sprintf("widget_%d", i+1)),
			Label:       label,
			Type:        InferType(hint, value),
			Default:     value,
			Source:      model.SourceWidget,
			WidgetIndex: &idx,
		})
	}

	switch inputs := raw["inputs"].(type) {
	case []any:
		// Array-style typed inputs. An input wired to another node with no
		// literal override is internal to the graph and stays hidden.
		for i, entry := range inputs {
			in, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			wired := in["link"] != nil || len(sliceField(in, "links")) > 0
			def := defaultOf(in)
			if wired && def == nil {
				continue
			}
			name := stringField(in, "name")
			label := name
			if label == "" {
				label = fmt.Sprintf("输入%d", i+1)
			}
			idx := i
			p.register(node, lookup, model.Parameter{
				ID:           fmt.Sprintf("%s_input_%d", idOrKey, i),
				Key:          sanitizeKey(label, fmt.Sprintf("input_%d", i+1)),
				Label:        label,
				Type:         InferType(stringField(in, "type"), def),
				Default:      def,
				Source:       model.SourceInput,
				InputIndex:   &idx,
				OriginalName: name,
			})
		}

	case map[string]any:
		// Object-style keyed inputs: every key is exposed (the shape carries
		// no wiring information). Keys are visited in sorted order so the
		// same document always yields the same parameter ids.
		keys := make([]string, 0, len(inputs))
		for k := range inputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			label := k
			if label == "" {
				label = fmt.Sprintf("输入%d", i+1)
			}
			p.register(node, lookup, model.Parameter{
				ID:           fmt.Sprintf("%s_input-object_%d", idOrKey, i),
				Key:          sanitizeKey(k, fmt.Sprintf("input_%d", i+1)),
				Label:        label,
				Type:         InferType("", inputs[k]),
				Default:      inputs[k],
				Source:       model.SourceInputObject,
				OriginalName: k,
			})
		}
	}
}

// register finalizes the parameter's path, appends it to the node and
// records it in the lookup. Path collisions within a node keep the later
// registration (last-write-wins), logged so colliding exports are visible.
func (p *Parser) register(node *model.Node, lookup model.ParameterLookup, param model.Parameter) {
	param.Path = node.Key + "." + param.Key
	node.Inputs = append(node.Inputs, param)

	if prev, ok := lookup[param.Path]; ok {
		p.logger.Warn("parameter path collision, later source wins",
			"path", param.Path, "previous", prev.Source, "source", param.Source)
	}
	lookup[param.Path] = model.ParameterMeta{
		NodeID:       node.ID,
		NodeKey:      node.Key,
		NodeLabel:    node.Name,
		ParamKey:     param.Key,
		Label:        param.Label,
		Type:         param.Type,
		Default:      param.Default,
		Source:       param.Source,
		WidgetIndex:  param.WidgetIndex,
		InputIndex:   param.InputIndex,
		OriginalName: param.OriginalName,
	}
}

// widgetDescriptor decodes widgets[i] into a (name, type) pair. Descriptors
// come in two shapes, a [name, type] tuple or a {name, type} object; a
// missing or malformed descriptor yields an unnamed, untyped widget.
func widgetDescriptor(widgets []any, i int) (name, typeHint string) {
	if i >= len(widgets) {
		return "", ""
	}
	switch w := widgets[i].(type) {
	case []any:
		if len(w) > 0 {
			name, _ = w[0].(string)
		}
		if len(w) > 1 {
			typeHint, _ = w[1].(string)
		}
	case map[string]any:
		name = stringField(w, "name")
		typeHint = stringField(w, "type")
	}
	return name, typeHint
}

// defaultOf resolves an input's literal override: value, else default, else
// nil. A present-but-null field does not count as an override.
func defaultOf(in map[string]any) any {
	if v, ok := in["value"]; ok && v != nil {
		return v
	}
	if v, ok := in["default"]; ok && v != nil {
		return v
	}
	return nil
}
