package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/comfyflow/internal/expr"
	"github.com/me/comfyflow/internal/graph"
	"github.com/me/comfyflow/pkg/model"
)

type createRunRequest struct {
	Values   map[string]any  `json:"values"`
	Bindings []model.Binding `json:"bindings"`
}

// applyTransforms evaluates each binding's value_from expression against the
// bound component's value, substituting the result back into a copy of the
// values map. The reconstruction itself stays expression-free.
func (s *Server) applyTransforms(values map[string]any, bindings []model.Binding) (map[string]any, error) {
	transformed := make(map[string]any, len(values))
	for k, v := range values {
		transformed[k] = v
	}
	for _, b := range bindings {
		if b.ValueFrom == "" {
			continue
		}
		result, err := s.eval.Evaluate(b.ValueFrom, expr.Context{
			Value:  transformed[b.ComponentID],
			Values: transformed,
		})
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.ComponentID, err)
		}
		transformed[b.ComponentID] = result
	}
	return transformed, nil
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	workflowID := chi.URLParam(r, "id")

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	if req.Values == nil {
		req.Values = map[string]any{}
	}

	wf, err := s.store.GetWorkflow(r.Context(), workflowID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if wf == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workflow", workflowID))
		return
	}

	var rawGraph map[string]any
	if err := json.Unmarshal(wf.RawGraph, &rawGraph); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: "stored graph unreadable: " + err.Error()})
		return
	}

	values, err := s.applyTransforms(req.Values, req.Bindings)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("value_from transform failed",
				model.FieldError{Field: "bindings", Message: err.Error()}))
		return
	}

	payload, err := graph.BuildPayload(req.Bindings, values, &graph.StoredWorkflow{
		WorkflowID: wf.ID,
		RawGraph:   rawGraph,
		Parameters: wf.Parameters,
	})
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	now := time.Now().UTC()
	run := &model.Run{
		ID:         "run_" + uuid.New().String(),
		WorkflowID: wf.ID,
		State:      model.RunStateQueued,
		Values:     req.Values,
		Bindings:   req.Bindings,
		Inputs:     payload.Inputs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	if s.engine != nil {
		promptID, err := s.engine.QueuePrompt(r.Context(), payload.Workflow)
		if err != nil {
			run.Error = err.Error()
			s.logger.Error("dispatch failed", "run_id", run.ID, "error", err)
			if terr := transitionRun(run, model.RunStateFailed); terr != nil {
				respondError(w, reqID, http.StatusInternalServerError,
					&model.APIError{Code: model.ErrInternal, Message: terr.Error()})
				return
			}
		} else {
			run.PromptID = promptID
			s.logger.Info("run dispatched", "run_id", run.ID, "prompt_id", promptID)
			if terr := transitionRun(run, model.RunStateDispatched); terr != nil {
				respondError(w, reqID, http.StatusInternalServerError,
					&model.APIError{Code: model.ErrInternal, Message: terr.Error()})
				return
			}
		}
		run.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateRun(r.Context(), run); err != nil {
			respondError(w, reqID, http.StatusInternalServerError,
				&model.APIError{Code: model.ErrInternal, Message: err.Error()})
			return
		}
	}

	respondCreated(w, reqID, run)
}

// transitionRun advances the run's state through the lifecycle table.
func transitionRun(run *model.Run, next model.RunState) error {
	if !run.State.CanTransitionTo(next) {
		return &model.InvalidTransitionError{ID: run.ID, From: run.State, To: next}
	}
	run.State = next
	return nil
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}

	if err := transitionRun(run, model.RunStateCancelled); err != nil {
		respondError(w, reqID, http.StatusConflict, &model.APIError{
			Code:    model.ErrConflict,
			Message: err.Error(),
		})
		return
	}
	run.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateRun(r.Context(), run); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	s.logger.Info("run cancelled", "run_id", run.ID)
	respondOK(w, reqID, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	workflowID := chi.URLParam(r, "id")

	wf, err := s.store.GetWorkflow(r.Context(), workflowID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if wf == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workflow", workflowID))
		return
	}

	runs, err := s.store.ListRunsByWorkflow(r.Context(), workflowID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	respondOK(w, reqID, runs)
}
