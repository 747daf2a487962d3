// Package tools defines the tool abstraction and the registry the
// conversation service dispatches through. The registry is assembled once
// at startup and immutable afterwards; handlers themselves live in
// subpackages (storetools for the record-store tools).
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/stackmesh/shopagent/pkg/models"
)

// ErrUnknownTool is returned by Lookup for names with no registered tool.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is a named operation the model (or a user, directly) can invoke.
//
// Execute returns the payload mapping on success. Failures are reported
// through the error return; the executor bridge normalizes both into the
// ToolResult envelope, so handlers never build envelopes themselves.
type Tool interface {
	Name() string
	Description() string

	// Schema returns the tool's input schema as a JSON Schema document.
	// It is used for documentation, for the model's tool declarations,
	// and for required-field presence checks. It is not a runtime type
	// coercion contract.
	Schema() json.RawMessage

	// Mutating reports whether executing the tool can alter persisted
	// state. Mutating tools are routed through the safety policy engine.
	Mutating() bool

	Execute(ctx context.Context, params map[string]any) (map[string]any, error)
}

// Registry is a fixed mapping from tool name to tool. It is immutable
// after construction and safe for concurrent use without locking.
type Registry struct {
	tools    map[string]Tool
	order    []string
	required map[string][]string
}

// NewRegistry builds a registry from the given tools. Name collisions and
// invalid input schemas are configuration errors; callers treat a non-nil
// error as fatal at startup.
func NewRegistry(list ...Tool) (*Registry, error) {
	r := &Registry{
		tools:    make(map[string]Tool, len(list)),
		required: make(map[string][]string, len(list)),
	}
	compiler := jsonschema.NewCompiler()

	for _, tool := range list {
		name := strings.TrimSpace(tool.Name())
		if name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}

		url := "registry:///" + name + ".json"
		if err := compiler.AddResource(url, strings.NewReader(string(tool.Schema()))); err != nil {
			return nil, fmt.Errorf("tool %q: invalid input schema: %w", name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tool %q: invalid input schema: %w", name, err)
		}

		r.tools[name] = tool
		r.order = append(r.order, name)
		r.required[name] = append([]string(nil), schema.Required...)
	}

	sort.Strings(r.order)
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool, nil
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Descriptors returns the immutable descriptors of every registered tool,
// sorted by name. This is the payload of the /mcp/tools endpoint and the
// source of the model's tool declarations.
func (r *Registry) Descriptors() []models.ToolDescriptor {
	out := make([]models.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		out = append(out, models.ToolDescriptor{
			Name:        tool.Name(),
			Description: tool.Description(),
			Schema:      tool.Schema(),
			Mutating:    tool.Mutating(),
		})
	}
	return out
}

// ValidateParams checks that every required parameter of the named tool
// is present. Types are deliberately not enforced; the schema guides the
// model, it does not coerce inputs.
func (r *Registry) ValidateParams(name string, params map[string]any) error {
	required, ok := r.required[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	var missing []string
	for _, field := range required {
		if v, present := params[field]; !present || v == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
