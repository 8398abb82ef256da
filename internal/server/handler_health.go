package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
	Engine    string `json:"engine"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	engineStatus := "not_configured"
	if s.engine != nil {
		engineStatus = "configured"
	}

	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "sqlite",
		Engine:    engineStatus,
	})
}

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "ComfyFlow API",
		Version:     "v1",
		Description: "ComfyUI workflow-to-app backend — graph normalization, parameter extraction, and run dispatch",
		Endpoints: []endpointInfo{
			{"/api/v1/workflows", []string{"GET", "POST"}, "Upload and list parsed workflows"},
			{"/api/v1/workflows/validate", []string{"POST"}, "Parse a workflow document without persisting"},
			{"/api/v1/workflows/{id}", []string{"GET", "DELETE"}, "Single workflow operations"},
			{"/api/v1/workflows/{id}/parameters", []string{"GET"}, "Parameter picker tree (node -> parameter paths)"},
			{"/api/v1/workflows/{id}/runs", []string{"GET", "POST"}, "Create and list runs for a workflow"},
			{"/api/v1/runs/{id}", []string{"GET"}, "Single run detail"},
			{"/api/v1/runs/{id}/cancel", []string{"PUT"}, "Cancel a run that has not finished"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
