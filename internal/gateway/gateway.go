// Package gateway exposes the two HTTP surfaces: the session API
// served by `shopagent serve` and the tool-execution API served by
// `shopagent executor`.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackmesh/shopagent/internal/agent"
	"github.com/stackmesh/shopagent/internal/observability"
	"github.com/stackmesh/shopagent/internal/sessions"
)

// Handler serves the session API.
type Handler struct {
	manager *sessions.Manager
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewHandler(manager *sessions.Manager, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager: manager,
		logger:  logger.With("component", "gateway"),
		metrics: metrics,
	}
}

// Routes builds the gateway mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", h.apiSessions)
	mux.HandleFunc("/api/sessions/", h.apiSession)
	mux.HandleFunc("/healthz", h.healthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type createSessionRequest struct {
	CustomerID string `json:"customer_id"`
}

type postMessageRequest struct {
	Message string `json:"message"`
}

// apiSessions handles the collection endpoints: create and list.
func (h *Handler) apiSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createSessionRequest
		if r.Body != nil {
			// An empty body is a valid "no initial context" create.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		sess, err := h.manager.Create(r.Context(), req.CustomerID)
		if err != nil {
			h.jsonError(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		h.jsonResponse(w, r, http.StatusCreated, map[string]any{
			"status":  "success",
			"session": sess,
		})
	case http.MethodGet:
		h.jsonResponse(w, r, http.StatusOK, map[string]any{
			"status":   "success",
			"sessions": h.manager.List(),
		})
	default:
		h.jsonError(w, r, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// apiSession handles session-scoped endpoints:
// GET/DELETE /api/sessions/{id} and POST /api/sessions/{id}/messages.
func (h *Handler) apiSession(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(path, "/")
	sessionID := parts[0]
	if sessionID == "" {
		h.jsonError(w, r, "session ID required", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 && parts[1] == "messages" {
		if r.Method != http.MethodPost {
			h.jsonError(w, r, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.postMessage(w, r, sessionID)
		return
	}
	if len(parts) != 1 {
		h.jsonError(w, r, "not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sess, err := h.manager.Get(sessionID)
		if err != nil {
			h.sessionError(w, r, err)
			return
		}
		h.jsonResponse(w, r, http.StatusOK, map[string]any{
			"status":  "success",
			"session": sess,
		})
	case http.MethodDelete:
		if err := h.manager.Delete(sessionID); err != nil {
			h.sessionError(w, r, err)
			return
		}
		h.jsonResponse(w, r, http.StatusOK, map[string]any{"status": "success"})
	default:
		h.jsonError(w, r, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		h.jsonError(w, r, "message is required", http.StatusBadRequest)
		return
	}

	turns, err := h.manager.Send(r.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrSessionNotFound) {
			h.sessionError(w, r, err)
			return
		}
		// Terminal turn failures (model down, round cap) already
		// produced a user-visible turn; the transcript is the answer.
		h.logger.Warn("turn ended with error", "session_id", sessionID, "error", err)
	}
	h.jsonResponse(w, r, http.StatusOK, map[string]any{
		"status": "success",
		"turns":  turns,
	})
}

func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, agent.ErrSessionNotFound) {
		h.jsonError(w, r, err.Error(), http.StatusNotFound)
		return
	}
	h.jsonError(w, r, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, r, http.StatusOK, map[string]any{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (h *Handler) jsonResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.countRequest(r, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("json encode error", "error", err)
	}
}

// jsonError writes an error envelope.
func (h *Handler) jsonError(w http.ResponseWriter, r *http.Request, message string, code int) {
	h.countRequest(r, code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "error",
		"error":  message,
	})
}

func (h *Handler) countRequest(r *http.Request, status int) {
	if h.metrics == nil {
		return
	}
	route := r.URL.Path
	if strings.HasPrefix(route, "/api/sessions/") {
		if strings.HasSuffix(route, "/messages") {
			route = "/api/sessions/{id}/messages"
		} else {
			route = "/api/sessions/{id}"
		}
	}
	h.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// NewServer wraps the handler in an http.Server bound to addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}
}

// Shutdown drains the server within the context deadline.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
