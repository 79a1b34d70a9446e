package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/heartline/pkg/engine"
	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// StepResponse matches the API step payload
type StepResponse struct {
	engine.Step
	Warning string `json:"warning,omitempty"`
}

type createSessionResponse struct {
	SessionID uuid.UUID   `json:"session_id"`
	Step      engine.Step `json:"step"`
}

// APIClient talks to the heartline HTTP API for one session.
type APIClient struct {
	client    *http.Client
	baseURL   string
	sessionID uuid.UUID
}

func NewAPIClient(client *http.Client, baseURL string) *APIClient {
	return &APIClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *APIClient) SessionID() uuid.UUID {
	return c.sessionID
}

func (c *APIClient) testConnection() bool {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// do sends a JSON request and decodes the response into out when the status
// matches want.
func (c *APIClient) do(method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *APIClient) sessionPath(action string) string {
	path := "/v1/sessions/" + c.sessionID.String()
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *APIClient) listScenarios() ([]string, error) {
	var resp struct {
		Scenarios []string `json:"scenarios"`
	}
	if err := c.do(http.MethodGet, "/v1/scenarios", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Scenarios, nil
}

// createSession starts a new game and binds the client to it.
func (c *APIClient) createSession(profile, playerName string) (engine.Step, error) {
	req := map[string]string{
		"profile":     profile,
		"player_name": playerName,
	}
	var resp createSessionResponse
	if err := c.do(http.MethodPost, "/v1/sessions", req, http.StatusCreated, &resp); err != nil {
		return engine.Step{}, fmt.Errorf("failed to create session: %w", err)
	}
	c.sessionID = resp.SessionID
	return resp.Step, nil
}

func (c *APIClient) getView() (*engine.View, error) {
	var view engine.View
	if err := c.do(http.MethodGet, c.sessionPath(""), nil, http.StatusOK, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *APIClient) advance() (*StepResponse, error) {
	var step StepResponse
	if err := c.do(http.MethodPost, c.sessionPath("advance"), nil, http.StatusOK, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

func (c *APIClient) choose(index int) (*StepResponse, error) {
	var step StepResponse
	if err := c.do(http.MethodPost, c.sessionPath("choice"), map[string]int{"index": index}, http.StatusOK, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

func (c *APIClient) tick(hours float64) (*progression.TickResult, error) {
	var result progression.TickResult
	if err := c.do(http.MethodPost, c.sessionPath("tick"), map[string]float64{"hours": hours}, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) save(slot int, name string) (*storage.SaveMeta, error) {
	req := map[string]any{"slot": slot, "name": name}
	var meta storage.SaveMeta
	if err := c.do(http.MethodPost, c.sessionPath("save"), req, http.StatusOK, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *APIClient) load(slot int) (*engine.View, error) {
	var view engine.View
	if err := c.do(http.MethodPost, c.sessionPath("load"), map[string]int{"slot": slot}, http.StatusOK, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *APIClient) listSaves() ([]storage.SaveMeta, error) {
	var resp struct {
		Saves []storage.SaveMeta `json:"saves"`
	}
	if err := c.do(http.MethodGet, c.sessionPath("saves"), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Saves, nil
}

func (c *APIClient) endSession() error {
	return c.do(http.MethodDelete, c.sessionPath(""), nil, http.StatusNoContent, nil)
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// listenToSSE connects to the SSE endpoint and streams events to a channel.
// The endpoint only exists when the API runs with Redis.
func (c *APIClient) listenToSSE(ctx context.Context, eventChan chan<- SSEEvent) error {
	url := fmt.Sprintf("%s/v1/events/sessions/%s", c.baseURL, c.sessionID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared client has a timeout; the stream must not.
	resp, err := (&http.Client{Transport: c.client.Transport}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	return readSSE(ctx, resp.Body, eventChan)
}

func readSSE(ctx context.Context, r io.Reader, eventChan chan<- SSEEvent) error {
	scanner := bufio.NewScanner(r)
	var currentEvent SSEEvent

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				eventChan <- currentEvent
				currentEvent = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil {
				currentEvent.Data = data
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	// The stream may end without a closing blank line
	if currentEvent.Type != "" {
		eventChan <- currentEvent
	}
	return nil
}
