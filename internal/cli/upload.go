package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/me/comfyflow/pkg/model"
	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	var name string
	var description string
	var validateOnly bool

	cmd := &cobra.Command{
		Use:   "upload <workflow.json>",
		Short: "Upload a ComfyUI workflow export",
		Long:  "Parse a ComfyUI workflow export and register it with the comfyflow server.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read workflow: %w", err)
			}
			var doc map[string]any
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse workflow file: %w", err)
			}

			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			if validateOnly {
				resp, err := client.Post("/api/v1/workflows/validate", doc)
				if err != nil {
					return fmt.Errorf("validate workflow: %w", err)
				}
				var report map[string]any
				if err := json.Unmarshal(resp.Data, &report); err != nil {
					return fmt.Errorf("parse response: %w", err)
				}
				if valid, _ := report["valid"].(bool); !valid {
					fmt.Println("Workflow: INVALID")
					if errs, ok := report["errors"].([]any); ok {
						for _, e := range errs {
							fmt.Printf("  - %v\n", e)
						}
					}
					return fmt.Errorf("workflow is invalid")
				}
				nodes, _ := report["nodes"].(float64)
				params, _ := report["parameters"].(float64)
				fmt.Printf("Workflow: valid (%d nodes, %d parameters)\n", int(nodes), int(params))
				return nil
			}

			resp, err := client.Post("/api/v1/workflows", map[string]any{
				"name":        name,
				"description": description,
				"workflow":    doc,
			})
			if err != nil {
				return fmt.Errorf("upload workflow: %w", err)
			}

			var wf model.Workflow
			if err := json.Unmarshal(resp.Data, &wf); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if wf.ID == "" {
				return fmt.Errorf("response missing 'workflow_id' field")
			}

			fmt.Printf("Workflow registered: %s (%d parameters)\n", wf.ID, len(wf.Parameters))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Workflow name (default: file name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Workflow description")
	cmd.Flags().BoolVar(&validateOnly, "validate", false, "Parse without persisting")
	return cmd
}
