package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// DefaultEngineURL is the stock local ComfyUI endpoint.
const DefaultEngineURL = "http://127.0.0.1:8188"

// Client abstracts the ComfyUI HTTP API for testability.
type Client interface {
	// QueuePrompt submits a reconstructed graph for execution and returns
	// the prompt id assigned by the engine.
	QueuePrompt(ctx context.Context, graph map[string]any) (string, error)
	// History fetches the execution record for a prompt id. A missing
	// prompt yields an empty map, not an error.
	History(ctx context.Context, promptID string) (map[string]any, error)
	// FreeMemory asks the engine to unload models and release VRAM.
	FreeMemory(ctx context.Context) error
}

// EngineError represents a rejection reported by the engine itself,
// as opposed to a transport failure.
type EngineError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *EngineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("engine error %s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("engine error %s: %s", e.Type, e.Message)
}

// ClientConfig holds ComfyUI endpoint configuration.
type ClientConfig struct {
	URL      string
	ClientID string
}

// DefaultClientConfig returns configuration pointing at a local engine
// with a fresh client id.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:      DefaultEngineURL,
		ClientID: uuid.NewString(),
	}
}

// promptRequest is the POST /prompt request envelope.
type promptRequest struct {
	Prompt   map[string]any `json:"prompt"`
	ClientID string         `json:"client_id,omitempty"`
}

// promptResponse is the POST /prompt response envelope.
type promptResponse struct {
	PromptID   string       `json:"prompt_id"`
	Number     int          `json:"number"`
	NodeErrors any          `json:"node_errors,omitempty"`
	Error      *EngineError `json:"error,omitempty"`
}

// HTTPClient implements Client using net/http.
type HTTPClient struct {
	url      string
	clientID string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPClient creates a client targeting the configured engine URL.
func NewHTTPClient(cfg ClientConfig, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		url:      strings.TrimRight(cfg.URL, "/"),
		clientID: cfg.ClientID,
		client:   &http.Client{},
		logger:   logger,
	}
}

// QueuePrompt submits a graph via POST /prompt.
func (c *HTTPClient) QueuePrompt(ctx context.Context, graph map[string]any) (string, error) {
	body, err := json.Marshal(promptRequest{Prompt: graph, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("marshal prompt request: %w", err)
	}

	c.logger.Debug("queue prompt", "url", c.url, "client_id", c.clientID)

	respBody, err := c.do(ctx, http.MethodPost, "/prompt", body)
	if err != nil {
		return "", err
	}

	var resp promptResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal prompt response: %w", err)
	}
	if resp.Error != nil {
		return "", resp.Error
	}
	if resp.PromptID == "" {
		return "", fmt.Errorf("engine returned no prompt id")
	}
	return resp.PromptID, nil
}

// History fetches GET /history/{prompt_id}.
func (c *HTTPClient) History(ctx context.Context, promptID string) (map[string]any, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/history/"+promptID, nil)
	if err != nil {
		return nil, err
	}

	var history map[string]any
	if err := json.Unmarshal(respBody, &history); err != nil {
		return nil, fmt.Errorf("unmarshal history response: %w", err)
	}
	return history, nil
}

// FreeMemory posts the unload request the engine exposes at /free.
func (c *HTTPClient) FreeMemory(ctx context.Context) error {
	body := []byte(`{"unload_models":true,"free_memory":true}`)
	if _, err := c.do(ctx, http.MethodPost, "/free", body); err != nil {
		return err
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine call %s %s: HTTP %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
