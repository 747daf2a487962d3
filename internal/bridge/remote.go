package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stackmesh/shopagent/pkg/models"
)

// RemoteExecutor forwards tool calls to a standalone executor process
// over HTTP. Transport failures, non-2xx responses and malformed
// bodies all normalize to the same failure envelope the local bridge
// produces, so the conversation engine cannot tell the two apart.
type RemoteExecutor struct {
	baseURL     string
	client      *http.Client
	logger      *slog.Logger
	descriptors []models.ToolDescriptor
}

type executeRequest struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

type executeResponse struct {
	ToolName string            `json:"tool_name"`
	Result   models.ToolResult `json:"result"`
}

// NewRemoteExecutor connects to the executor at baseURL and fetches
// its tool catalog. The catalog is fixed at startup; a restarted
// executor with different tools needs a gateway restart too.
func NewRemoteExecutor(ctx context.Context, baseURL string, timeout time.Duration, logger *slog.Logger) (*RemoteExecutor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &RemoteExecutor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "remote_executor"),
	}

	descriptors, err := r.fetchDescriptors(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching tool catalog from %s: %w", baseURL, err)
	}
	r.descriptors = descriptors
	r.logger.Info("connected to executor", "url", baseURL, "tools", len(descriptors))
	return r, nil
}

func (r *RemoteExecutor) Descriptors() []models.ToolDescriptor {
	out := make([]models.ToolDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Execute posts the call to /mcp/execute and normalizes every failure
// mode into a ToolResult.
func (r *RemoteExecutor) Execute(ctx context.Context, name string, params map[string]any) models.ToolResult {
	body, err := json.Marshal(executeRequest{ToolName: name, Parameters: params})
	if err != nil {
		return models.FailureResult("encoding tool call: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/mcp/execute", bytes.NewReader(body))
	if err != nil {
		return models.FailureResult("building executor request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("executor unreachable", "tool", name, "error", err)
		return models.FailureResult("executor unreachable: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return models.FailureResult("reading executor response: %v", err)
	}

	var decoded executeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		r.logger.Warn("malformed executor response",
			"tool", name, "status", resp.StatusCode, "body_bytes", len(raw))
		return models.FailureResult("executor returned status %d with unreadable body", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The executor reports refusals and handler errors inside the
		// envelope; prefer that message when it carries one.
		if !decoded.Result.OK && decoded.Result.Error != "" {
			return decoded.Result
		}
		return models.FailureResult("executor returned status %d", resp.StatusCode)
	}
	if decoded.Result.OK && decoded.Result.Payload == nil {
		return models.FailureResult("executor returned success without a payload")
	}
	return decoded.Result
}

func (r *RemoteExecutor) fetchDescriptors(ctx context.Context) ([]models.ToolDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/mcp/tools", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var decoded struct {
		Tools []models.ToolDescriptor `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding tool catalog: %w", err)
	}
	return decoded.Tools, nil
}
