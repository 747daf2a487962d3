package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stackmesh/shopagent/pkg/models"
)

// scriptedProvider returns its completions in order and keeps a count
// of how many times it was called.
type scriptedProvider struct {
	script []*Completion
	err    error
	calls  int
}

func (p *scriptedProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if len(p.script) == 0 {
		return &Completion{Text: "done"}, nil
	}
	next := p.script[0]
	if len(p.script) > 1 {
		p.script = p.script[1:]
	}
	return next, nil
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) SupportsTools() bool { return true }

// recordingExecutor satisfies bridge.Executor and records every call.
type recordingExecutor struct {
	executed []models.ToolCall
}

func (r *recordingExecutor) Descriptors() []models.ToolDescriptor {
	return catalogForExtraction()
}

func (r *recordingExecutor) Execute(ctx context.Context, name string, params map[string]any) models.ToolResult {
	r.executed = append(r.executed, models.ToolCall{Name: name, Params: params})
	return models.SuccessResult(map[string]any{"tool": name})
}

func newSession() *models.Session {
	return &models.Session{ID: "s1"}
}

func TestRunTurnFinalAnswer(t *testing.T) {
	provider := &scriptedProvider{script: []*Completion{{Text: "Hello there."}}}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	sess := newSession()
	turns, err := engine.RunTurn(context.Background(), sess, "hi")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want user + assistant", len(turns))
	}
	if turns[0].Role != models.RoleUser || turns[1].Role != models.RoleAssistant {
		t.Errorf("roles = %s, %s", turns[0].Role, turns[1].Role)
	}
	if len(exec.executed) != 0 {
		t.Errorf("tools ran for a plain answer: %v", exec.executed)
	}
}

func TestRunTurnStructuredToolLoop(t *testing.T) {
	provider := &scriptedProvider{script: []*Completion{
		{ToolCalls: []models.ToolCall{{Name: "get_customer_info", Params: map[string]any{"customer_id": "42"}}}},
		{Text: "Customer 42 has two orders."},
	}}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	sess := newSession()
	turns, err := engine.RunTurn(context.Background(), sess, "tell me about customer 42")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(exec.executed) != 1 || exec.executed[0].Name != "get_customer_info" {
		t.Fatalf("executed = %v", exec.executed)
	}

	var sawToolResult, sawFinal bool
	for _, turn := range turns {
		if turn.Role == models.RoleToolResult {
			sawToolResult = true
			if turn.ToolResult == nil || !turn.ToolResult.OK {
				t.Error("tool-result turn missing its envelope")
			}
		}
		if turn.Role == models.RoleAssistant && turn.Content == "Customer 42 has two orders." {
			sawFinal = true
		}
	}
	if !sawToolResult || !sawFinal {
		t.Errorf("turn shape wrong: %+v", turns)
	}
}

func TestRunTurnHeuristicFallback(t *testing.T) {
	provider := &scriptedProvider{script: []*Completion{
		{Text: "I'll use get_customer_info for customer ID 42"},
		{Text: "Here is what I found."},
	}}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	_, err := engine.RunTurn(context.Background(), newSession(), "who is customer 42?")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(exec.executed) != 1 {
		t.Fatalf("executed = %v", exec.executed)
	}
	if exec.executed[0].Params["customer_id"] != "42" {
		t.Errorf("params = %v", exec.executed[0].Params)
	}
}

func TestRunTurnStructuredBeatsHeuristic(t *testing.T) {
	// The prose would extract get_customer_info/7; the structured call
	// names a different tool and must win.
	provider := &scriptedProvider{script: []*Completion{
		{
			Text:      "I'll use get_customer_info for customer ID 7",
			ToolCalls: []models.ToolCall{{Name: "get_all_products", Params: map[string]any{}}},
		},
		{Text: "Catalog listed."},
	}}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	_, err := engine.RunTurn(context.Background(), newSession(), "show me products")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(exec.executed) != 1 || exec.executed[0].Name != "get_all_products" {
		t.Errorf("executed = %v, want only the structured call", exec.executed)
	}
}

func TestRunTurnIterationCap(t *testing.T) {
	// A provider that always requests a tool must be cut off at the cap.
	provider := &scriptedProvider{script: []*Completion{
		{ToolCalls: []models.ToolCall{{Name: "get_all_products", Params: map[string]any{}}}},
	}}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil, WithMaxToolRounds(3))

	sess := newSession()
	turns, err := engine.RunTurn(context.Background(), sess, "loop forever")
	if !errors.Is(err, ErrIterationCap) {
		t.Fatalf("err = %v, want ErrIterationCap", err)
	}
	if len(exec.executed) != 3 {
		t.Errorf("executions = %d, want exactly the cap", len(exec.executed))
	}
	last := turns[len(turns)-1]
	if last.Role != models.RoleAssistant || last.Content == "" {
		t.Error("cap did not surface a terminal assistant turn")
	}
}

func TestRunTurnDirectInvocation(t *testing.T) {
	provider := &scriptedProvider{script: []*Completion{{Text: "Those are all products we carry."}}}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	sess := newSession()
	turns, err := engine.RunTurn(context.Background(), sess, "get_customer_info 42")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(exec.executed) != 1 || exec.executed[0].Params["customer_id"] != "42" {
		t.Fatalf("executed = %v", exec.executed)
	}
	// Exactly one model call: narration only, no tool-selection round.
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
	if turns[1].Role != models.RoleToolResult {
		t.Errorf("turn after user input = %s, want tool_result", turns[1].Role)
	}
}

func TestRunTurnDirectInvocationLeadingWhitespace(t *testing.T) {
	provider := &scriptedProvider{script: []*Completion{{Text: "Here is customer 42."}}}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	// Surrounding whitespace must not leak into the argument.
	_, err := engine.RunTurn(context.Background(), newSession(), "  get_customer_info 42  ")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(exec.executed) != 1 || exec.executed[0].Name != "get_customer_info" {
		t.Fatalf("executed = %v", exec.executed)
	}
	if got := exec.executed[0].Params["customer_id"]; got != "42" {
		t.Errorf("customer_id = %q, want %q", got, "42")
	}
}

func TestRunTurnDirectInvocationNoArgs(t *testing.T) {
	provider := &scriptedProvider{}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	_, err := engine.RunTurn(context.Background(), newSession(), "get_all_products")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(exec.executed) != 1 || exec.executed[0].Name != "get_all_products" {
		t.Errorf("executed = %v", exec.executed)
	}
}

func TestRunTurnModelUnavailable(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	sess := newSession()
	turns, err := engine.RunTurn(context.Background(), sess, "hello")
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	last := turns[len(turns)-1]
	if last.Role != models.RoleAssistant || last.Content == "" {
		t.Error("failure did not surface a user-visible turn")
	}

	// The session survives and a later turn works.
	provider.err = nil
	if _, err := engine.RunTurn(context.Background(), sess, "hello again"); err != nil {
		t.Fatalf("second RunTurn: %v", err)
	}
}

func TestRunTurnEmptyCompletion(t *testing.T) {
	provider := &scriptedProvider{script: []*Completion{{}}}
	exec := &recordingExecutor{}
	engine := NewEngine(provider, exec, nil)

	_, err := engine.RunTurn(context.Background(), newSession(), "hello")
	if !errors.Is(err, ErrMalformedModelResponse) {
		t.Fatalf("err = %v, want ErrMalformedModelResponse", err)
	}
}
