// Package bridge runs tool calls on behalf of the conversation engine.
// It owns the failure envelope: every outcome, including policy
// refusals, timeouts and panics, comes back as a models.ToolResult so
// callers never branch on error shape.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/stackmesh/shopagent/internal/observability"
	"github.com/stackmesh/shopagent/internal/policy"
	"github.com/stackmesh/shopagent/internal/tools"
	"github.com/stackmesh/shopagent/pkg/models"
)

// DefaultTimeout bounds a single tool execution when the caller does
// not configure one.
const DefaultTimeout = 30 * time.Second

// Executor is what the conversation engine sees. The local Bridge and
// the RemoteExecutor HTTP client both satisfy it.
type Executor interface {
	Execute(ctx context.Context, name string, params map[string]any) models.ToolResult
	Descriptors() []models.ToolDescriptor
}

// statementCarrier is implemented by tools whose parameters contain a
// SQL statement the safety policy must classify before execution.
type statementCarrier interface {
	PrimaryStatement(params map[string]any) (string, bool)
}

// Bridge executes registered tools in-process.
type Bridge struct {
	registry *tools.Registry
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout overrides the per-execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

func New(registry *tools.Registry, logger *slog.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		registry: registry,
		timeout:  DefaultTimeout,
		logger:   logger.With("component", "bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Descriptors lists the registered tools.
func (b *Bridge) Descriptors() []models.ToolDescriptor {
	return b.registry.Descriptors()
}

// Execute runs a single tool call. Unknown tools, missing parameters
// and policy refusals fail before any side effect; handler errors,
// timeouts and panics fail after. The returned envelope always holds
// exactly one of payload or error.
func (b *Bridge) Execute(ctx context.Context, name string, params map[string]any) models.ToolResult {
	start := time.Now()
	result := b.execute(ctx, name, params)
	elapsed := time.Since(start)

	b.metrics.ObserveTool(name, elapsed.Seconds(), result.OK)
	if result.OK {
		b.logger.Debug("tool executed", "tool", name, "duration", elapsed)
	} else {
		b.logger.Warn("tool failed", "tool", name, "duration", elapsed, "error", result.Error)
	}
	return result
}

func (b *Bridge) execute(ctx context.Context, name string, params map[string]any) models.ToolResult {
	tool, err := b.registry.Lookup(name)
	if err != nil {
		return models.FailureResult("unknown tool: %s", name)
	}
	if err := b.registry.ValidateParams(name, params); err != nil {
		return models.FailureResult("%s", err)
	}

	if tool.Mutating() {
		if carrier, ok := tool.(statementCarrier); ok {
			if stmt, ok := carrier.PrimaryStatement(params); ok {
				if decision := policy.Classify(stmt); !decision.Allowed {
					if b.metrics != nil {
						b.metrics.PolicyRejections.WithLabelValues(name).Inc()
					}
					return models.FailureResult("%s", decision.Reason)
				}
			}
		}
	}

	return b.run(ctx, tool, params)
}

// run executes the tool handler in its own goroutine so a hung or
// panicking handler cannot take the engine down with it.
func (b *Bridge) run(ctx context.Context, tool tools.Tool, params map[string]any) models.ToolResult {
	execCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type outcome struct {
		payload map[string]any
		err     error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("tool panicked",
					"tool", tool.Name(), "panic", r, "stack", string(debug.Stack()))
				ch <- outcome{err: fmt.Errorf("tool %s panicked: %v", tool.Name(), r)}
			}
		}()
		payload, err := tool.Execute(execCtx, params)
		ch <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return models.FailureResult("%s", out.err)
		}
		return models.SuccessResult(out.payload)
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return models.FailureResult("execution cancelled")
		}
		return models.FailureResult("tool %s timeout after %s", tool.Name(), b.timeout)
	}
}
