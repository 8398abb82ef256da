package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/me/comfyflow/pkg/model"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// parseSetFlags turns repeated --set path=value flags into a values map.
// Values are decoded as JSON when possible (numbers, booleans, quoted
// strings, objects) and fall back to plain strings.
func parseSetFlags(sets []string) (map[string]any, error) {
	values := make(map[string]any, len(sets))
	for _, s := range sets {
		path, raw, ok := strings.Cut(s, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --set %q, want path=value", s)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		values[path] = v
	}
	return values, nil
}

func newRunCmd() *cobra.Command {
	var sets []string
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <workflow_id>",
		Short: "Create a run for a workflow",
		Long:  "Map parameter values into the stored workflow and dispatch it to the execution engine.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := args[0]

			values, err := parseSetFlags(sets)
			if err != nil {
				return err
			}

			resp, err := client.Post("/api/v1/workflows/"+workflowID+"/runs", map[string]any{
				"values": values,
			})
			if err != nil {
				return fmt.Errorf("create run: %w", err)
			}

			var run model.Run
			if err := json.Unmarshal(resp.Data, &run); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if run.ID == "" {
				return fmt.Errorf("response missing 'id' field")
			}
			fmt.Printf("Run created: %s (state: %s)\n", run.ID, run.State)

			if run.Error != "" {
				return fmt.Errorf("run failed: %s", run.Error)
			}
			if !wait || run.State.IsTerminal() {
				return nil
			}
			return waitForRun(run.ID, timeout)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Parameter value as path=value (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the run reaches a terminal state")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Give up waiting after this long")
	return cmd
}

// waitForRun polls the run until it terminates, showing a spinner.
func waitForRun(runID string, timeout time.Duration) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("waiting for "+runID),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for run %s", runID)
		}
		bar.Add(1)
		time.Sleep(2 * time.Second)

		resp, err := client.Get("/api/v1/runs/" + runID)
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}
		var run model.Run
		if err := json.Unmarshal(resp.Data, &run); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		if !run.State.IsTerminal() {
			continue
		}

		bar.Clear()
		fmt.Printf("Run %s: %s\n", runID, run.State)
		if run.Error != "" {
			return fmt.Errorf("run failed: %s", run.Error)
		}
		return nil
	}
}
