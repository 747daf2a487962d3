// Package storetools implements the record-store backed tools exposed to
// the conversation engine: customer lookup, product catalog, table
// introspection, ad-hoc reads and policy-gated mutations.
package storetools

import (
	"fmt"

	"github.com/stackmesh/shopagent/internal/store"
	"github.com/stackmesh/shopagent/internal/tools"
)

// All returns the full tool set over the given store, in registration
// order. The caller hands these to tools.NewRegistry at startup.
func All(s *store.Store) []tools.Tool {
	return []tools.Tool{
		&customerInfoTool{store: s},
		&allProductsTool{store: s},
		&describeTableTool{store: s},
		&queryDataTool{store: s},
		&executeUpdateTool{store: s},
	}
}

// stringParam reads a parameter as a string, accepting numeric values
// the model may send for identifier fields.
func stringParam(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// positionalArgs reads the optional "params" parameter as positional
// statement arguments ($1..$n).
func positionalArgs(params map[string]any) []any {
	raw, ok := params["params"].([]any)
	if !ok {
		return nil
	}
	return raw
}
