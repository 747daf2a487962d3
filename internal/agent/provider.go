package agent

import (
	"context"

	"github.com/stackmesh/shopagent/pkg/models"
)

// Provider is the single capability interface every model backend
// implements. Adapters live in internal/agent/providers; the engine
// never branches on which backend it is talking to.
type Provider interface {
	// Complete sends the conversation and tool schema and returns
	// either free text, structured tool calls, or both.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// Name identifies the backend in logs and metrics.
	Name() string

	// SupportsTools reports whether the backend accepts tool schemas.
	// When false the engine still runs, leaning on the heuristic
	// extractor alone.
	SupportsTools() bool
}

// CompletionRequest is one model round trip.
type CompletionRequest struct {
	System    string
	Messages  []models.Turn
	Tools     []models.ToolDescriptor
	MaxTokens int
}

// Completion is the normalized model response. When ToolCalls is
// non-empty the structured calls take precedence over anything Text
// might imply.
type Completion struct {
	Text      string
	ToolCalls []models.ToolCall
}
