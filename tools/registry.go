// Package tools provides the registry that maps tool names to handlers and
// the built-in tool implementations. Handlers are stateless and must be safe
// under at-least-once execution: the engine may retry a dispatch after a
// worker crash even when the handler already ran.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type (
	// Handler executes one tool call. Arguments arrive as the normalized
	// map form; the return value is either a string or a JSON-serializable
	// value (maps and slices are JSON-encoded on the way to storage).
	Handler func(ctx context.Context, args map[string]any) (any, error)

	// Definition describes a registered tool to the model provider.
	Definition struct {
		Name        string
		Description string
		// Parameters is the JSON-schema document for the tool arguments,
		// forwarded verbatim to the provider.
		Parameters map[string]any
	}

	// Registry maps tool names to handlers. Safe for concurrent use.
	Registry struct {
		mu      sync.RWMutex
		entries map[string]*entry
	}

	// RegisterOption customizes a registration.
	RegisterOption func(*entry)

	entry struct {
		handler     Handler
		description string
		parameters  map[string]any
		schema      *jsonschema.Schema
	}
)

// WithDescription attaches a human-readable description forwarded to the
// provider in the tool definition.
func WithDescription(desc string) RegisterOption {
	return func(e *entry) { e.description = desc }
}

// WithArgumentSchema attaches a JSON-schema document. The schema is both
// forwarded to the provider and enforced against incoming arguments at
// dispatch time.
func WithArgumentSchema(schema map[string]any) RegisterOption {
	return func(e *entry) { e.parameters = schema }
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a handler under name. Registering a schema compiles it once;
// compile failures surface here rather than on the dispatch path.
func (r *Registry) Register(name string, h Handler, opts ...RegisterOption) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if h == nil {
		return fmt.Errorf("tool %q: handler is required", name)
	}
	e := &entry{handler: h}
	for _, opt := range opts {
		opt(e)
	}
	if e.parameters != nil {
		schema, err := compileSchema(e.parameters)
		if err != nil {
			return fmt.Errorf("tool %q: %w", name, err)
		}
		e.schema = schema
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	r.entries[name] = e
	return nil
}

// Lookup resolves a handler by name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.handler, true
}

// Definition returns the provider-facing definition of a registered tool.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Definition{}, false
	}
	return Definition{Name: name, Description: e.description, Parameters: e.parameters}, true
}

// Names lists the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateArguments checks args against the tool's registered schema, if any.
func (r *Registry) ValidateArguments(name string, args map[string]any) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok || e.schema == nil {
		return nil
	}
	// The validator expects the instance as decoded JSON; round-trip the
	// map so nested values use the canonical any/float64 representation.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return e.schema.Validate(instance)
}

func compileSchema(doc map[string]any) (*jsonschema.Schema, error) {
	// Round-trip through JSON so the compiler sees plain decoded values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
