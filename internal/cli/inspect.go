package cli

import (
	"encoding/json"
	"fmt"

	"github.com/me/comfyflow/pkg/model"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <workflow_id>",
		Short: "Show a workflow's nodes and parameter paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/workflows/" + id)
			if err != nil {
				return fmt.Errorf("get workflow: %w", err)
			}
			var wf model.Workflow
			if err := json.Unmarshal(resp.Data, &wf); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Workflow: %s (%s)\n", wf.Name, id)

			paramsResp, err := client.Get("/api/v1/workflows/" + id + "/parameters")
			if err != nil {
				return fmt.Errorf("get parameters: %w", err)
			}
			var tree []model.CascaderNode
			if err := json.Unmarshal(paramsResp.Data, &tree); err != nil {
				return fmt.Errorf("parse parameters: %w", err)
			}

			if len(tree) == 0 {
				fmt.Println("  (no parameters)")
				return nil
			}

			for _, node := range tree {
				fmt.Printf("  %s\n", node.Label)
				for _, opt := range node.Children {
					fmt.Printf("    %-40s  %-10s  default: %v\n", opt.Value, opt.Type, opt.Default)
				}
			}
			return nil
		},
	}
}
