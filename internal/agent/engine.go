// Package agent drives one user message through zero or more tool
// round trips to a final assistant answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stackmesh/shopagent/internal/bridge"
	"github.com/stackmesh/shopagent/internal/observability"
	"github.com/stackmesh/shopagent/pkg/models"
)

// DefaultMaxToolRounds bounds the tool loop for a single user turn.
const DefaultMaxToolRounds = 5

// Engine is the conversation turn state machine. It owns no session
// state; the session manager hands it a session and serializes calls
// per session.
type Engine struct {
	provider  Provider
	executor  bridge.Executor
	extractor *Extractor
	system    string
	maxRounds int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxToolRounds overrides the per-turn tool loop cap.
func WithMaxToolRounds(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxRounds = n
		}
	}
}

// WithSystemPrompt sets the system text sent with every model request.
func WithSystemPrompt(s string) EngineOption {
	return func(e *Engine) { e.system = s }
}

// WithEngineMetrics attaches Prometheus instrumentation.
func WithEngineMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(provider Provider, executor bridge.Executor, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		provider:  provider,
		executor:  executor,
		extractor: NewExtractor(executor.Descriptors()),
		maxRounds: DefaultMaxToolRounds,
		logger:    logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a single tool call directly, outside any conversation.
// The session manager uses it for context preloading.
func (e *Engine) Execute(ctx context.Context, name string, params map[string]any) models.ToolResult {
	return e.executor.Execute(ctx, name, params)
}

// RunTurn processes one user message against the session: it appends
// the user turn, loops model calls and tool executions until the model
// settles on text or the round cap is hit, and returns the turns this
// call produced. Terminal failures (model down, malformed response,
// round cap) append a user-visible assistant turn and return the
// matching taxonomy error alongside the turns; the session stays
// usable either way.
func (e *Engine) RunTurn(ctx context.Context, sess *models.Session, text string) ([]models.Turn, error) {
	mark := len(sess.Turns)
	e.appendTurn(sess, models.Turn{Role: models.RoleUser, Content: text})

	// A message shaped like "toolname arg..." is a direct invocation:
	// it skips the model and the extractor, executes immediately, and
	// the model only narrates the result.
	if call := e.parseDirectInvocation(text); call != nil {
		e.runToolCall(ctx, sess, call)
		if err := e.narrate(ctx, sess); err != nil {
			return sess.Turns[mark:], err
		}
		return sess.Turns[mark:], nil
	}

	for round := 0; round < e.maxRounds; round++ {
		completion, err := e.complete(ctx, sess)
		if err != nil {
			return sess.Turns[mark:], err
		}

		// Structured calls always win; the extractor only sees
		// responses that carry no structured call at all.
		calls := completion.ToolCalls
		if len(calls) == 0 && completion.Text != "" {
			if implied := e.extractor.Extract(completion.Text); implied != nil {
				e.logger.Debug("heuristic tool call recovered",
					"session_id", sess.ID, "tool", implied.Name)
				calls = []models.ToolCall{*implied}
			}
		}

		if len(calls) == 0 {
			if completion.Text == "" {
				e.appendTurn(sess, models.Turn{
					Role:    models.RoleAssistant,
					Content: "The model returned an empty response. Please try again.",
				})
				return sess.Turns[mark:], ErrMalformedModelResponse
			}
			e.appendTurn(sess, models.Turn{Role: models.RoleAssistant, Content: completion.Text})
			return sess.Turns[mark:], nil
		}

		if completion.Text != "" {
			e.appendTurn(sess, models.Turn{Role: models.RoleAssistant, Content: completion.Text})
		}
		for i := range calls {
			e.runToolCall(ctx, sess, &calls[i])
		}
	}

	e.appendTurn(sess, models.Turn{
		Role: models.RoleAssistant,
		Content: fmt.Sprintf(
			"I could not finish this request: too many tool round-trips (limit %d).", e.maxRounds),
	})
	return sess.Turns[mark:], ErrIterationCap
}

// complete performs one model round trip and normalizes failures.
func (e *Engine) complete(ctx context.Context, sess *models.Session) (*Completion, error) {
	req := &CompletionRequest{
		System:   e.system,
		Messages: sess.Turns,
	}
	if e.provider.SupportsTools() {
		req.Tools = e.executor.Descriptors()
	}

	start := time.Now()
	completion, err := e.provider.Complete(ctx, req)
	e.metrics.ObserveModel(e.provider.Name(), time.Since(start).Seconds(), err == nil && completion != nil)

	if err != nil {
		e.logger.Error("model request failed",
			"session_id", sess.ID, "provider", e.provider.Name(), "error", err)
		e.appendTurn(sess, models.Turn{
			Role:    models.RoleAssistant,
			Content: "The model is currently unavailable. Your session is still open; please try again.",
		})
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if completion == nil {
		e.appendTurn(sess, models.Turn{
			Role:    models.RoleAssistant,
			Content: "The model returned an empty response. Please try again.",
		})
		return nil, ErrMalformedModelResponse
	}
	return completion, nil
}

// narrate asks the model to describe the most recent tool result, with
// no further tool access.
func (e *Engine) narrate(ctx context.Context, sess *models.Session) error {
	completion, err := e.provider.Complete(ctx, &CompletionRequest{
		System:   e.system,
		Messages: sess.Turns,
	})
	if err != nil {
		e.appendTurn(sess, models.Turn{
			Role:    models.RoleAssistant,
			Content: "The tool ran; the model is unavailable to summarize the result shown above.",
		})
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if completion == nil || completion.Text == "" {
		return nil
	}
	e.appendTurn(sess, models.Turn{Role: models.RoleAssistant, Content: completion.Text})
	return nil
}

func (e *Engine) runToolCall(ctx context.Context, sess *models.Session, call *models.ToolCall) {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	result := e.executor.Execute(ctx, call.Name, call.Params)
	e.appendTurn(sess, models.Turn{
		Role:       models.RoleToolResult,
		Content:    result.ContentForModel(),
		ToolCall:   call,
		ToolResult: &result,
	})
}

// parseDirectInvocation recognizes "toolname", "toolname 42" and
// "query_data SELECT ..." user messages. The first token must match a
// registered tool name exactly (case-insensitive); the rest of the
// message fills the tool's single required parameter, if it has one.
// Tools needing more than one required parameter are not invocable
// this way.
func (e *Engine) parseDirectInvocation(text string) *models.ToolCall {
	trimmed := strings.TrimSpace(text)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return nil
	}
	for _, d := range e.executor.Descriptors() {
		if !strings.EqualFold(fields[0], d.Name) {
			continue
		}
		required := requiredParams(d.Schema)
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0]))
		switch {
		case len(required) == 0:
			return &models.ToolCall{Name: d.Name, Params: map[string]any{}}
		case len(required) == 1 && rest != "":
			return &models.ToolCall{Name: d.Name, Params: map[string]any{required[0]: rest}}
		default:
			return nil
		}
	}
	return nil
}

func (e *Engine) appendTurn(sess *models.Session, turn models.Turn) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	turn.CreatedAt = time.Now().UTC()
	sess.Turns = append(sess.Turns, turn)
	sess.LastActivity = turn.CreatedAt
}
