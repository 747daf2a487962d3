// Package sessions owns conversation state: an explicit in-memory
// store with create/send/get/list/delete, serialized per session.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackmesh/shopagent/internal/agent"
	"github.com/stackmesh/shopagent/internal/observability"
	"github.com/stackmesh/shopagent/pkg/models"
)

// Preloaded-context names recorded on the session.
const (
	PreloadProducts = "products"
	PreloadCustomer = "customer"
)

// Manager owns the session store. All access goes through it; there is
// no shared session state elsewhere. Sessions live until deleted — no
// idle eviction.
type Manager struct {
	engine *agent.Engine
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*models.Session

	locksMu sync.Mutex
	locks   map[string]*sessionLock

	preloadProducts bool
	metrics         *observability.Metrics
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithProductPreload controls whether Create injects the product
// catalog as context. On by default.
func WithProductPreload(enabled bool) ManagerOption {
	return func(m *Manager) { m.preloadProducts = enabled }
}

// WithManagerMetrics attaches Prometheus instrumentation.
func WithManagerMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

func NewManager(engine *agent.Engine, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		engine:          engine,
		logger:          logger.With("component", "sessions"),
		sessions:        make(map[string]*models.Session),
		locks:           make(map[string]*sessionLock),
		preloadProducts: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds a new session and preloads context before handing it
// back: the product catalog always (unless disabled), and the customer
// bundle when an initial customer ID is supplied. Later turns reuse
// that context without re-fetching.
func (m *Manager) Create(ctx context.Context, initialCustomerID string) (*models.Session, error) {
	now := time.Now().UTC()
	sess := &models.Session{
		ID:           uuid.NewString(),
		Preloaded:    make(map[string]bool),
		CreatedAt:    now,
		LastActivity: now,
	}

	if m.preloadProducts {
		m.preload(ctx, sess, PreloadProducts, "get_all_products", map[string]any{})
	}
	if id := strings.TrimSpace(initialCustomerID); id != "" {
		m.preload(ctx, sess, PreloadCustomer, "get_customer_info", map[string]any{"customer_id": id})
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}
	m.logger.Info("session created",
		"session_id", sess.ID, "preloaded", len(sess.Preloaded))
	return m.snapshot(sess), nil
}

// preload runs a tool and injects its result as a context turn. A
// failed preload is recorded in the transcript but does not fail
// session creation.
func (m *Manager) preload(ctx context.Context, sess *models.Session, name, tool string, params map[string]any) {
	result := m.engine.Execute(ctx, tool, params)
	call := &models.ToolCall{ID: uuid.NewString(), Name: tool, Params: params}
	sess.Turns = append(sess.Turns, models.Turn{
		ID:         uuid.NewString(),
		Role:       models.RoleToolResult,
		Content:    result.ContentForModel(),
		ToolCall:   call,
		ToolResult: &result,
		CreatedAt:  time.Now().UTC(),
	})
	if result.OK {
		sess.Preloaded[name] = true
	} else {
		m.logger.Warn("context preload failed",
			"session_id", sess.ID, "tool", tool, "error", result.Error)
	}
}

// Send runs one user message through the turn engine. Calls on the
// same session serialize; calls on different sessions do not block
// each other. Returns the turns this call produced.
//
// The engine never touches the stored session: it runs against a
// private copy, and the result is committed under the write lock.
// Get and List therefore see either the state before the turn or
// after it, never a half-appended history.
func (m *Manager) Send(ctx context.Context, sessionID, text string) ([]models.Turn, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	m.mu.RLock()
	stored, ok := m.sessions[sessionID]
	var working *models.Session
	if ok {
		working = m.snapshot(stored)
	}
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", agent.ErrSessionNotFound, sessionID)
	}

	turns, err := m.engine.RunTurn(ctx, working, text)
	if err != nil {
		m.logger.Warn("turn ended with error",
			"session_id", sessionID, "error", err)
	}

	m.mu.Lock()
	// A delete that raced the turn wins; do not resurrect the session.
	if stored, ok := m.sessions[sessionID]; ok {
		stored.Turns = working.Turns
		stored.LastActivity = working.LastActivity
	}
	m.mu.Unlock()

	return turns, err
}

// Get returns a snapshot of the session transcript.
func (m *Manager) Get(sessionID string) (*models.Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", agent.ErrSessionNotFound, sessionID)
	}
	return m.snapshot(sess), nil
}

// List returns summaries of all live sessions, newest activity first.
func (m *Manager) List() []models.SessionSummary {
	m.mu.RLock()
	summaries := make([]models.SessionSummary, 0, len(m.sessions))
	for _, sess := range m.sessions {
		summaries = append(summaries, models.SessionSummary{
			ID:           sess.ID,
			TurnCount:    len(sess.Turns),
			Preloaded:    sess.Preloaded,
			LastActivity: sess.LastActivity,
		})
	}
	m.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	return summaries
}

// Delete removes the session. Unknown IDs report ErrSessionNotFound.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", agent.ErrSessionNotFound, sessionID)
	}
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}
	m.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// snapshot copies the session so callers cannot mutate stored state.
func (m *Manager) snapshot(sess *models.Session) *models.Session {
	out := &models.Session{
		ID:           sess.ID,
		Turns:        make([]models.Turn, len(sess.Turns)),
		Preloaded:    make(map[string]bool, len(sess.Preloaded)),
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastActivity,
	}
	copy(out.Turns, sess.Turns)
	for k, v := range sess.Preloaded {
		out.Preloaded[k] = v
	}
	return out
}

// sessionLock is a refcounted mutex: the entry is dropped once the
// last holder releases, so the lock map does not grow with dead
// sessions.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (m *Manager) lockSession(sessionID string) func() {
	if strings.TrimSpace(sessionID) == "" {
		return func() {}
	}

	m.locksMu.Lock()
	lock := m.locks[sessionID]
	if lock == nil {
		lock = &sessionLock{}
		m.locks[sessionID] = lock
	}
	lock.refs++
	m.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.locksMu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(m.locks, sessionID)
		}
		m.locksMu.Unlock()
	}
}
