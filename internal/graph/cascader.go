package graph

import "github.com/me/comfyflow/pkg/model"

// Cascader projects a parsed workflow into the tree shape the parameter
// picker widget consumes: one entry per node, one child per exposed
// parameter, with the parameter path as the selectable value. Purely
// derived; the parsed workflow is not touched.
func Cascader(parsed *model.ParsedWorkflow) []model.CascaderNode {
	if parsed == nil {
		return []model.CascaderNode{}
	}
	tree := make([]model.CascaderNode, 0, len(parsed.Nodes))
	for _, node := range parsed.Nodes {
		children := make([]model.CascaderOption, 0, len(node.Inputs))
		for _, param := range node.Inputs {
			children = append(children, model.CascaderOption{
				Label:   param.Label,
				Value:   param.Path,
				Type:    param.Type,
				Default: param.Default,
				NodeID:  node.ID,
				NodeKey: node.Key,
			})
		}
		tree = append(tree, model.CascaderNode{
			Label:    node.Name,
			Value:    node.Key,
			Children: children,
		})
	}
	return tree
}
