// Package client provides an HTTP client for the chorus server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/models"
)

// Client talks to a running chorus server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client.
// If baseURL is empty, uses CHORUS_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via CHORUS_CLIENT_TIMEOUT env var (default 3m, the pipeline
// may wait on several models in sequence).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("CHORUS_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 3 * time.Minute
	if t := os.Getenv("CHORUS_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ServerError is returned for non-2xx responses.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Message)
}

// ServiceCard describes the server's persona and roster.
type ServiceCard struct {
	Service   string                   `json:"service"`
	Persona   string                   `json:"persona"`
	Agents    []models.AgentDefinition `json:"agents"`
	Endpoints []string                 `json:"endpoints"`
}

// Health is the GET /health payload.
type Health struct {
	Status        string `json:"status"`
	Agents        int    `json:"agents"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type searchResponse struct {
	Memories     []models.MemoryHit `json:"memories"`
	ResultsCount int                `json:"results_count"`
}

// do sends body as JSON (if non-nil) and decodes the response into result (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &ServerError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Chat sends one message through the pipeline.
func (c *Client) Chat(ctx context.Context, message, userID string) (*models.ChatResult, error) {
	var result models.ChatResult
	if err := c.do(ctx, http.MethodPost, "/chat", chatRequest{Message: message, UserID: userID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchMemory returns the stored exchanges of userID nearest to query.
func (c *Client) SearchMemory(ctx context.Context, query, userID string, limit int) ([]models.MemoryHit, error) {
	var resp searchResponse
	req := searchRequest{Query: query, UserID: userID, Limit: limit}
	if err := c.do(ctx, http.MethodPost, "/memory/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Memories, nil
}

// ServiceCard returns the server description.
func (c *Client) ServiceCard(ctx context.Context) (*ServiceCard, error) {
	var card ServiceCard
	if err := c.do(ctx, http.MethodGet, "/", nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Health checks the server is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Stats returns the server's runtime metrics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Session is a WebSocket conversation. Calls to Send are serialized.
type Session struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial opens a WebSocket session on /ws.
func (c *Client) Dial(ctx context.Context) (*Session, error) {
	wsEndpoint := c.baseURL + "/ws"
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Send sends one message and waits for its result.
func (s *Session) Send(ctx context.Context, message, userID string) (*models.ChatResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
		_ = s.conn.SetReadDeadline(deadline)
		defer func() {
			_ = s.conn.SetWriteDeadline(time.Time{})
			_ = s.conn.SetReadDeadline(time.Time{})
		}()
	}

	if err := s.conn.WriteJSON(chatRequest{Message: message, UserID: userID}); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	var raw json.RawMessage
	if err := s.conn.ReadJSON(&raw); err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return nil, errors.New(e.Error)
	}

	var result models.ChatResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

// Close sends a close frame and closes the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
