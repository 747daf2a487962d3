package storetools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stackmesh/shopagent/internal/store"
)

// executeUpdateTool runs INSERT, UPDATE and DELETE statements inside a
// transaction. It is the only mutating tool; the executor bridge routes
// its primary statement through the safety policy engine before this
// handler ever runs.
type executeUpdateTool struct {
	store *store.Store
}

func (t *executeUpdateTool) Name() string { return "execute_update" }

func (t *executeUpdateTool) Description() string {
	return "Executes an INSERT, UPDATE, or DELETE statement on the database."
}

func (t *executeUpdateTool) Mutating() bool { return true }

func (t *executeUpdateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "SQL statement to execute (INSERT, UPDATE, or DELETE)"},
			"params": {"type": "array", "description": "Positional statement parameters ($1..$n)"}
		},
		"required": ["query"]
	}`)
}

// PrimaryStatement reports the statement the safety policy engine must
// classify before execution.
func (t *executeUpdateTool) PrimaryStatement(params map[string]any) (string, bool) {
	query := stringParam(params, "query")
	return query, query != ""
}

func (t *executeUpdateTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	query := stringParam(params, "query")
	if query == "" {
		return nil, errors.New("query is required")
	}

	affected, err := t.store.ExecUpdate(ctx, query, positionalArgs(params)...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return map[string]any{"rows_affected": affected}, nil
}
