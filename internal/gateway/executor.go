package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackmesh/shopagent/internal/bridge"
	"github.com/stackmesh/shopagent/pkg/models"
)

// ExecutorHandler serves the tool-execution API consumed by a remote
// gateway: GET /mcp/tools and POST /mcp/execute.
type ExecutorHandler struct {
	bridge bridge.Executor
	known  map[string]bool
	logger *slog.Logger
}

func NewExecutorHandler(b bridge.Executor, logger *slog.Logger) *ExecutorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	// The tool catalog is fixed after startup, so name membership can
	// be resolved once here rather than inferred from failure messages.
	known := make(map[string]bool)
	for _, d := range b.Descriptors() {
		known[d.Name] = true
	}
	return &ExecutorHandler{
		bridge: b,
		known:  known,
		logger: logger.With("component", "executor_api"),
	}
}

// Routes builds the executor mux.
func (h *ExecutorHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/tools", h.listTools)
	mux.HandleFunc("/mcp/execute", h.execute)
	mux.HandleFunc("/healthz", h.healthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type executeRequest struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

type executeResponse struct {
	ToolName string            `json:"tool_name"`
	Result   models.ToolResult `json:"result"`
}

func (h *ExecutorHandler) listTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"tools": h.bridge.Descriptors(),
	})
}

// execute runs one tool call. Status reflects the outcome: 200 for
// success, 400 when the tool reported an error, 404 for an unknown
// tool. The result envelope is included in every case so clients can
// ignore the status and read the envelope alone.
func (h *ExecutorHandler) execute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ToolName == "" {
		h.writeError(w, "tool_name is required", http.StatusBadRequest)
		return
	}

	result := h.bridge.Execute(r.Context(), req.ToolName, req.Parameters)
	status := http.StatusOK
	if !result.OK {
		status = http.StatusBadRequest
		if !h.known[req.ToolName] {
			status = http.StatusNotFound
		}
	}
	h.writeJSON(w, status, executeResponse{ToolName: req.ToolName, Result: result})
}

func (h *ExecutorHandler) healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *ExecutorHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("json encode error", "error", err)
	}
}

func (h *ExecutorHandler) writeError(w http.ResponseWriter, message string, code int) {
	h.writeJSON(w, code, map[string]string{
		"status": "error",
		"error":  message,
	})
}
