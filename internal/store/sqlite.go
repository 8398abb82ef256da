package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/comfyflow/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Workflow CRUD ---

func (s *SQLiteStore) CreateWorkflow(ctx context.Context, wf *model.Workflow) error {
	s.logger.Debug("sql", "op", "insert", "table", "workflows", "id", wf.ID)

	nodesJSON, err := json.Marshal(wf.Nodes)
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}
	lookupJSON, err := json.Marshal(wf.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameter lookup: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, description, content_hash, raw_graph, nodes, parameter_lookup, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.Name, wf.Description, wf.ContentHash, string(wf.RawGraph),
		string(nodesJSON), string(lookupJSON),
		wf.CreatedAt.Format(time.RFC3339Nano), wf.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	s.logger.Debug("sql", "op", "select", "table", "workflows", "id", id)
	return s.scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, content_hash, raw_graph, nodes, parameter_lookup, created_at, updated_at
		 FROM workflows WHERE id = ?`, id))
}

func (s *SQLiteStore) GetWorkflowByHash(ctx context.Context, hash string) (*model.Workflow, error) {
	s.logger.Debug("sql", "op", "select_by_hash", "table", "workflows", "hash", hash)
	return s.scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, content_hash, raw_graph, nodes, parameter_lookup, created_at, updated_at
		 FROM workflows WHERE content_hash = ?`, hash))
}

func (s *SQLiteStore) scanWorkflow(row *sql.Row) (*model.Workflow, error) {
	var wf model.Workflow
	var rawGraph, nodesJSON, lookupJSON string
	var createdAt, updatedAt string

	err := row.Scan(&wf.ID, &wf.Name, &wf.Description, &wf.ContentHash, &rawGraph,
		&nodesJSON, &lookupJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	wf.RawGraph = json.RawMessage(rawGraph)
	if err := json.Unmarshal([]byte(nodesJSON), &wf.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal([]byte(lookupJSON), &wf.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameter lookup: %w", err)
	}
	wf.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	wf.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &wf, nil
}

func (s *SQLiteStore) ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.Workflow, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "workflows", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows`).Scan(&total); err != nil {
		return nil, 0, err
	}

	// List views skip the heavy columns; callers fetch the full record by id.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, content_hash, created_at, updated_at
		 FROM workflows ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var workflows []*model.Workflow
	for rows.Next() {
		var wf model.Workflow
		var createdAt, updatedAt string
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Description, &wf.ContentHash, &createdAt, &updatedAt); err != nil {
			return nil, 0, err
		}
		wf.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		wf.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		workflows = append(workflows, &wf)
	}
	return workflows, total, rows.Err()
}

func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "workflows", "id", id)
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	return err
}

// --- Run CRUD ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	valuesJSON, err := json.Marshal(orEmptyMap(run.Values))
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	bindingsJSON, err := json.Marshal(orEmptyBindings(run.Bindings))
	if err != nil {
		return fmt.Errorf("marshal bindings: %w", err)
	}
	inputsJSON, err := json.Marshal(orEmptyMap(run.Inputs))
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_id, state, "values", bindings, inputs, prompt_id, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, string(run.State), string(valuesJSON), string(bindingsJSON),
		string(inputsJSON), run.PromptID, run.Error,
		run.CreatedAt.Format(time.RFC3339Nano), run.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, state, "values", bindings, inputs, prompt_id, error, created_at, updated_at
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListRunsByWorkflow(ctx context.Context, workflowID string) ([]*model.Run, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "workflow_id", workflowID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, state, "values", bindings, inputs, prompt_id, error, created_at, updated_at
		 FROM runs WHERE workflow_id = ? ORDER BY created_at DESC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID, "state", run.State)

	inputsJSON, err := json.Marshal(orEmptyMap(run.Inputs))
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	run.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, inputs = ?, prompt_id = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(run.State), string(inputsJSON), run.PromptID, run.Error,
		run.UpdatedAt.Format(time.RFC3339Nano), run.ID,
	)
	return err
}

// scanRun reads one run row via the given Scan function, so it serves both
// QueryRow and Rows iteration.
func scanRun(scan func(...any) error) (*model.Run, error) {
	var run model.Run
	var state, valuesJSON, bindingsJSON, inputsJSON string
	var createdAt, updatedAt string

	err := scan(&run.ID, &run.WorkflowID, &state, &valuesJSON, &bindingsJSON,
		&inputsJSON, &run.PromptID, &run.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	run.State = model.RunState(state)
	if err := json.Unmarshal([]byte(valuesJSON), &run.Values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	if err := json.Unmarshal([]byte(bindingsJSON), &run.Bindings); err != nil {
		return nil, fmt.Errorf("unmarshal bindings: %w", err)
	}
	if err := json.Unmarshal([]byte(inputsJSON), &run.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &run, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyBindings(b []model.Binding) []model.Binding {
	if b == nil {
		return []model.Binding{}
	}
	return b
}
