package storetools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stackmesh/shopagent/internal/store"
)

// queryDataTool is the read path the safety policy redirects SELECTs to.
// It accepts only SELECT statements; everything else belongs to
// execute_update.
type queryDataTool struct {
	store *store.Store
}

func (t *queryDataTool) Name() string { return "query_data" }

func (t *queryDataTool) Description() string {
	return "Executes a read-only SELECT query and returns the matching rows."
}

func (t *queryDataTool) Mutating() bool { return false }

func (t *queryDataTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "SELECT statement to execute"},
			"params": {"type": "array", "description": "Positional statement parameters ($1..$n)"}
		},
		"required": ["query"]
	}`)
}

func (t *queryDataTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	query := stringParam(params, "query")
	if query == "" {
		return nil, errors.New("query is required")
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return nil, errors.New("query_data only accepts SELECT statements; use execute_update for writes")
	}

	rows, err := t.store.QueryRows(ctx, query, positionalArgs(params)...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return map[string]any{
		"rows":      out,
		"row_count": len(rows),
	}, nil
}
