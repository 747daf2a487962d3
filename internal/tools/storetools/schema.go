package storetools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stackmesh/shopagent/internal/store"
)

// describeTableTool exposes information_schema metadata so the model can
// write correct statements for tables it has not seen.
type describeTableTool struct {
	store *store.Store
}

func (t *describeTableTool) Name() string { return "describe_table" }

func (t *describeTableTool) Description() string {
	return "Describes the columns, types and primary keys of a database table."
}

func (t *describeTableTool) Mutating() bool { return false }

func (t *describeTableTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"table": {"type": "string", "description": "Table name to describe"},
			"schema": {"type": "string", "description": "Schema name (default: public)"}
		},
		"required": ["table"]
	}`)
}

func (t *describeTableTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	table := stringParam(params, "table")
	if table == "" {
		return nil, errors.New("table name is required")
	}
	schema := stringParam(params, "schema")
	if schema == "" {
		schema = "public"
	}

	cols, err := t.store.DescribeTable(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s.%s not found or has no columns", schema, table)
	}

	out := make([]any, len(cols))
	for i, col := range cols {
		out[i] = map[string]any{
			"column_name":    col.Name,
			"data_type":      col.DataType,
			"is_nullable":    col.IsNullable,
			"column_default": col.Default,
			"is_primary_key": col.IsPrimaryKey,
		}
	}
	return map[string]any{"columns": out}, nil
}
