package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/me/comfyflow/pkg/model"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/workflows")
			if err != nil {
				return fmt.Errorf("list workflows: %w", err)
			}

			var workflows []model.Workflow
			if err := json.Unmarshal(resp.Data, &workflows); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(workflows) == 0 {
				fmt.Println("No workflows found.")
				return nil
			}

			fmt.Printf("%-40s  %-30s  %s\n", "ID", "NAME", "CREATED")
			fmt.Printf("%-40s  %-30s  %s\n", "----", "-----", "-------")
			for _, wf := range workflows {
				fmt.Printf("%-40s  %-30s  %s\n", wf.ID, wf.Name, humanize.Time(wf.CreatedAt))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(workflows), resp.Pagination.Total)
			}

			return nil
		},
	}
}
