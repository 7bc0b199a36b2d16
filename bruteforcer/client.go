package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MoveResult mirrors the server's move response.
type MoveResult struct {
	SessionID string         `json:"session_id"`
	GameType  string         `json:"game_type"`
	Outcome   map[string]any `json:"outcome"`
	GameState map[string]any `json:"game_state"`
	Completed bool           `json:"is_completed"`
	Message   string         `json:"message"`
}

// GameState mirrors the server's game state response.
type GameState struct {
	SessionID string         `json:"session_id"`
	GameType  string         `json:"game_type"`
	Tags      []string       `json:"tags"`
	GameState map[string]any `json:"game_state"`
	Completed bool           `json:"is_completed"`
}

type createResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Data      struct {
		SessionID string `json:"session_id"`
	} `json:"data"`
}

// Client talks to the REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateSession creates a session and returns its id. body holds the create
// request fields: game_type, preset, tags, config.
func (c *Client) CreateSession(ctx context.Context, body map[string]any) (string, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &resp); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return resp.Data.SessionID, nil
}

func (c *Client) GetState(ctx context.Context, sessionID string) (*GameState, error) {
	var state GameState
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/state", nil, &state); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &state, nil
}

func (c *Client) Move(ctx context.Context, sessionID string, action map[string]any) (*MoveResult, error) {
	var result MoveResult
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/move", action, &result); err != nil {
		return nil, fmt.Errorf("move: %w", err)
	}
	return &result, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/sessions/"+sessionID, nil, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error     string `json:"error"`
			ErrorCode string `json:"error_code"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			if errResp.ErrorCode != "" {
				return fmt.Errorf("%s (%s): %s", resp.Status, errResp.ErrorCode, errResp.Error)
			}
			return fmt.Errorf("%s: %s", resp.Status, errResp.Error)
		}
		return fmt.Errorf("%s - %s", resp.Status, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
