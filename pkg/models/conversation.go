// Package models defines the shared data types for the shopagent
// conversation service: sessions, turns, tool calls and the normalized
// tool result envelope.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role indicates the author of a conversation turn.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Turn is a single entry in a session transcript. Turns are append-only
// and ordered; a session's turn list is the authoritative transcript.
type Turn struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ToolCall is a request to execute a named tool with a parameter mapping.
// It is produced either by a structured model response, by the heuristic
// extractor, or by a direct user-typed invocation. ToolCalls are transient
// and never persisted outside the turn that carries them.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// ToolResult is the normalized envelope every tool execution returns,
// regardless of whether the handler ran locally, remotely, or failed in
// transport. Exactly one of Payload and Error carries authoritative
// content; OK=false implies Error is non-empty.
type ToolResult struct {
	OK      bool           `json:"ok"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// SuccessResult wraps a payload in a successful envelope.
func SuccessResult(payload map[string]any) ToolResult {
	return ToolResult{OK: true, Payload: payload}
}

// FailureResult builds a failed envelope. The message must be non-empty;
// an empty message is replaced so the OK=false invariant always holds.
func FailureResult(format string, args ...any) ToolResult {
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		msg = "tool execution failed"
	}
	return ToolResult{OK: false, Error: msg}
}

// ContentForModel renders the result as the text fed back to the model as
// a tool-result turn. Failures surface the error so the model can retry
// or apologize; successes surface the payload as JSON.
func (r ToolResult) ContentForModel() string {
	if !r.OK {
		return fmt.Sprintf(`{"error":%q}`, r.Error)
	}
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ToolDescriptor describes a registered tool: its input schema (JSON
// Schema document), and whether executing it can mutate persisted state.
// Descriptors are immutable and defined at process start.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"input_schema"`
	Mutating    bool            `json:"mutating"`
}

// Session is one conversation's accumulated state.
type Session struct {
	ID           string          `json:"id"`
	Turns        []Turn          `json:"turns"`
	Preloaded    map[string]bool `json:"preloaded,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`
}

// SessionSummary is the compact representation returned by list calls.
type SessionSummary struct {
	ID           string          `json:"id"`
	TurnCount    int             `json:"turn_count"`
	Preloaded    map[string]bool `json:"preloaded,omitempty"`
	LastActivity time.Time       `json:"last_activity"`
}
