package store

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/me/comfyflow/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleWorkflow() *model.Workflow {
	now := time.Now().UTC().Truncate(time.Millisecond)
	idx := 0
	return &model.Workflow{
		ID:          "wf_test-1",
		Name:        "txt2img",
		Description: "A test workflow",
		ContentHash: "abc123",
		RawGraph:    json.RawMessage(`{"nodes":[{"id":3,"type":"KSampler","widgets_values":[20]}]}`),
		Nodes: []model.Node{
			{
				ID:   f(3),
				Name: "KSampler",
				Type: "KSampler",
				Key:  "KSampler",
				Inputs: []model.Parameter{
					{
						ID: "3_widget_0", Key: "steps", Label: "steps",
						Type: model.TypeNumber, Default: float64(20),
						Path: "KSampler.steps", Source: model.SourceWidget, WidgetIndex: &idx,
					},
				},
				Outputs: []model.Output{{Key: "LATENT", Type: "LATENT"}},
			},
		},
		Parameters: model.ParameterLookup{
			"KSampler.steps": {
				NodeID: f(3), NodeKey: "KSampler", NodeLabel: "KSampler",
				ParamKey: "steps", Label: "steps", Type: model.TypeNumber,
				Default: float64(20), Source: model.SourceWidget, WidgetIndex: &idx,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleRun(workflowID string) *model.Run {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Run{
		ID:         "run_test-1",
		WorkflowID: workflowID,
		State:      model.RunStateQueued,
		Values:     map[string]any{"KSampler.steps": float64(30)},
		Bindings:   []model.Binding{{ComponentID: "slider1", BindTo: "KSampler.steps"}},
		Inputs:     map[string]any{"KSampler.steps": float64(30)},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func f(v float64) *float64 { return &v }

func TestWorkflowCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	wf := sampleWorkflow()
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	got, err := st.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got == nil {
		t.Fatal("GetWorkflow returned nil")
	}
	if got.Name != wf.Name {
		t.Errorf("Name = %q, want %q", got.Name, wf.Name)
	}
	if len(got.Nodes) != 1 || got.Nodes[0].Key != "KSampler" {
		t.Errorf("nodes round-trip broken: %+v", got.Nodes)
	}
	meta, ok := got.Parameters["KSampler.steps"]
	if !ok {
		t.Fatal("parameter lookup lost")
	}
	if meta.WidgetIndex == nil || *meta.WidgetIndex != 0 {
		t.Errorf("widgetIndex = %v, want 0", meta.WidgetIndex)
	}

	// Raw graph survives byte-for-byte semantics (valid JSON, same content).
	var raw map[string]any
	if err := json.Unmarshal(got.RawGraph, &raw); err != nil {
		t.Fatalf("raw graph corrupted: %v", err)
	}
	if _, ok := raw["nodes"]; !ok {
		t.Error("raw graph lost nodes")
	}
}

func TestGetWorkflow_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetWorkflow(context.Background(), "wf_missing")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestGetWorkflowByHash(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	wf := sampleWorkflow()
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	got, err := st.GetWorkflowByHash(ctx, wf.ContentHash)
	if err != nil {
		t.Fatalf("GetWorkflowByHash: %v", err)
	}
	if got == nil || got.ID != wf.ID {
		t.Errorf("got %+v, want id %s", got, wf.ID)
	}

	missing, err := st.GetWorkflowByHash(ctx, "nope")
	if err != nil {
		t.Fatalf("GetWorkflowByHash: %v", err)
	}
	if missing != nil {
		t.Errorf("got %+v, want nil", missing)
	}
}

func TestListWorkflows(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		wf := sampleWorkflow()
		wf.ID = "wf_list-" + string(rune('a'+i))
		wf.ContentHash = wf.ID
		wf.CreatedAt = wf.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := st.CreateWorkflow(ctx, wf); err != nil {
			t.Fatalf("CreateWorkflow: %v", err)
		}
	}

	list, total, err := st.ListWorkflows(ctx, model.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(list) != 2 {
		t.Errorf("page size = %d, want 2", len(list))
	}
	// Newest first.
	if list[0].ID != "wf_list-c" {
		t.Errorf("first = %s, want wf_list-c", list[0].ID)
	}
	// List views omit the heavy columns.
	if list[0].RawGraph != nil || list[0].Nodes != nil {
		t.Error("list view carried raw graph or nodes")
	}
}

func TestDeleteWorkflow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	wf := sampleWorkflow()
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if err := st.DeleteWorkflow(ctx, wf.ID); err != nil {
		t.Fatalf("DeleteWorkflow: %v", err)
	}
	got, err := st.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got != nil {
		t.Error("workflow still present after delete")
	}
}

func TestRunCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run := sampleRun("wf_test-1")
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if got.State != model.RunStateQueued {
		t.Errorf("state = %s, want QUEUED", got.State)
	}
	if got.Values["KSampler.steps"] != float64(30) {
		t.Errorf("values round-trip broken: %v", got.Values)
	}
	if len(got.Bindings) != 1 || got.Bindings[0].BindTo != "KSampler.steps" {
		t.Errorf("bindings round-trip broken: %+v", got.Bindings)
	}

	got.State = model.RunStateDispatched
	got.PromptID = "prompt-9"
	if err := st.UpdateRun(ctx, got); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	again, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if again.State != model.RunStateDispatched || again.PromptID != "prompt-9" {
		t.Errorf("update lost: state=%s prompt=%s", again.State, again.PromptID)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRun(context.Background(), "run_missing")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestListRunsByWorkflow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		run := sampleRun("wf_shared")
		run.ID = "run_" + string(rune('a'+i))
		run.CreatedAt = run.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := st.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	other := sampleRun("wf_other")
	other.ID = "run_other"
	if err := st.CreateRun(ctx, other); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	runs, err := st.ListRunsByWorkflow(ctx, "wf_shared")
	if err != nil {
		t.Fatalf("ListRunsByWorkflow: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].ID != "run_b" {
		t.Errorf("first = %s, want run_b (newest first)", runs[0].ID)
	}
}
