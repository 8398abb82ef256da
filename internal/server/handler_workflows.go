package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/comfyflow/internal/graph"
	"github.com/me/comfyflow/pkg/model"
)

// createWorkflowRequest is the wrapped upload form. A bare raw graph
// document is also accepted.
type createWorkflowRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Workflow    map[string]any `json:"workflow"`
}

// decodeWorkflowBody accepts either {name?, description?, workflow: {...}}
// or a bare graph document as the request body.
func decodeWorkflowBody(r *http.Request) (createWorkflowRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return createWorkflowRequest{}, err
	}

	var req createWorkflowRequest
	if err := json.Unmarshal(body, &req); err == nil && req.Workflow != nil {
		return req, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return createWorkflowRequest{}, err
	}
	return createWorkflowRequest{Workflow: doc}, nil
}

// contentHash produces the dedupe key for an uploaded document.
func contentHash(doc map[string]any) string {
	data, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	req, err := decodeWorkflowBody(r)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	hash := contentHash(req.Workflow)
	if hash != "" {
		existing, err := s.store.GetWorkflowByHash(r.Context(), hash)
		if err != nil {
			respondError(w, reqID, http.StatusInternalServerError,
				&model.APIError{Code: model.ErrInternal, Message: err.Error()})
			return
		}
		if existing != nil {
			s.logger.Info("workflow upload deduplicated", "workflow_id", existing.ID)
			respondOK(w, reqID, existing)
			return
		}
	}

	parsed, err := s.parser.Parse(req.Workflow)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: err.Error(),
		})
		return
	}

	raw, err := json.Marshal(req.Workflow)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	name := req.Name
	if name == "" {
		name = "unnamed-workflow"
	}
	now := time.Now().UTC()
	wf := &model.Workflow{
		ID:          parsed.WorkflowID,
		Name:        name,
		Description: req.Description,
		ContentHash: hash,
		RawGraph:    raw,
		Nodes:       parsed.Nodes,
		Parameters:  parsed.Parameters,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateWorkflow(r.Context(), wf); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	s.logger.Info("workflow created",
		"workflow_id", wf.ID, "name", wf.Name,
		"nodes", len(wf.Nodes), "parameters", len(wf.Parameters))

	respondCreated(w, reqID, wf)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	opts.Clamp()

	workflows, total, err := s.store.ListWorkflows(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	respondList(w, reqID, workflows, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wf, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if wf == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workflow", id))
		return
	}
	respondOK(w, reqID, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wf, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if wf == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workflow", id))
		return
	}
	if err := s.store.DeleteWorkflow(r.Context(), id); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	respondOK(w, reqID, map[string]any{"deleted": true})
}

// handleValidateWorkflow parses the uploaded document without persisting
// anything, returning the normalized preview.
func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	req, err := decodeWorkflowBody(r)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	parsed, err := s.parser.Parse(req.Workflow)
	if err != nil {
		if errors.Is(err, graph.ErrInvalidWorkflow) {
			respondOK(w, reqID, map[string]any{
				"valid":  false,
				"errors": []string{err.Error()},
			})
			return
		}
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	respondOK(w, reqID, map[string]any{
		"valid":      true,
		"errors":     []string{},
		"nodes":      len(parsed.Nodes),
		"parameters": len(parsed.Parameters),
		"preview":    parsed,
	})
}

// handleWorkflowParameters returns the cascader tree projection.
func (s *Server) handleWorkflowParameters(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wf, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if wf == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workflow", id))
		return
	}

	parsed := &model.ParsedWorkflow{
		WorkflowID: wf.ID,
		Nodes:      wf.Nodes,
		Parameters: wf.Parameters,
	}
	respondOK(w, reqID, graph.Cascader(parsed))
}
