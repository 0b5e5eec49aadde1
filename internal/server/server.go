// Package server exposes the chat pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/models"
	"github.com/raphaelgruber/chorus/internal/service"
)

// maxRequestBodySize caps JSON request bodies.
const maxRequestBodySize = 1 << 20

// DefaultUserID is used when a request omits user_id.
const DefaultUserID = "anonymous"

// defaultSearchLimit applies when a memory search omits limit.
const defaultSearchLimit = 5

// ChatRequest is the body of POST /chat and of every inbound WebSocket frame.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// SearchRequest is the body of POST /memory/search.
type SearchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// SearchResponse lists memories nearest-first.
type SearchResponse struct {
	Memories     []models.MemoryHit `json:"memories"`
	ResultsCount int                `json:"results_count"`
}

// ServiceCard describes the running service at GET /.
type ServiceCard struct {
	Service   string                   `json:"service"`
	Persona   string                   `json:"persona"`
	Agents    []models.AgentDefinition `json:"agents"`
	Endpoints []string                 `json:"endpoints"`
}

// ErrorResponse is written for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server routes requests to a ChatService.
type Server struct {
	chat     *service.ChatService
	metrics  *metrics.Collector
	logger   *slog.Logger
	upgrader websocket.Upgrader
	started  time.Time
}

// New creates a server for chat. collector may be nil.
func New(chat *service.ChatService, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		chat:    chat,
		metrics: collector,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		started: time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", s.handleServiceCard)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Post("/chat", s.handleChat)
	r.Post("/memory/search", s.handleMemorySearch)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests up to 10 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Minute, // a chat may wait on several models in sequence
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleServiceCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceCard{
		Service:   "chorus",
		Persona:   s.chat.PersonaName(),
		Agents:    s.chat.Agents(),
		Endpoints: []string{"POST /chat", "POST /memory/search", "GET /health", "GET /stats", "GET /ws"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"agents":         len(s.chat.Agents()),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result := s.chat.HandleChat(r.Context(), req.Message, userOrDefault(req.UserID))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	hits, err := s.chat.SearchMemory(r.Context(), req.Query, userOrDefault(req.UserID), req.Limit)
	if err != nil {
		s.logger.Warn("memory search unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "memory search unavailable")
		return
	}
	if hits == nil {
		hits = []models.MemoryHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Memories: hits, ResultsCount: len(hits)})
}

// handleWebSocket answers each inbound chat frame with one ChatResult frame.
// Frames are handled sequentially per connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}

		var reply any
		if strings.TrimSpace(req.Message) == "" {
			reply = ErrorResponse{Error: "message is required"}
		} else {
			reply = s.chat.HandleChat(r.Context(), req.Message, userOrDefault(req.UserID))
		}
		if err := conn.WriteJSON(reply); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func userOrDefault(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return DefaultUserID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
