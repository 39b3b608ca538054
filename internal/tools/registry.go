// Package tools defines the catalog of operations the gateway exposes to AI
// agents and the handlers behind them. The catalog and the dispatch table
// are one structure, keyed by tool name, so the advertised definitions and
// the callable handlers cannot drift apart.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fieldlinehq/fieldline/internal/store"
)

// HandlerFunc executes a tool call on behalf of the authenticated tenant.
type HandlerFunc func(ctx context.Context, tenantID string, args map[string]interface{}) (interface{}, error)

// Schema is the JSON-Schema shape advertised for a tool's arguments.
type Schema struct {
	Type                 string                 `json:"type"`
	Properties           map[string]interface{} `json:"properties"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
}

// Definition is the discovery record returned by tools/list.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Tool pairs a definition with its handler, required scope, and the
// compiled form of its input schema.
type Tool struct {
	Definition Definition
	Scope      string

	handler  HandlerFunc
	compiled *jsonschema.Schema
}

// ValidateArgs checks the call arguments against the tool's input schema.
func (t *Tool) ValidateArgs(args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := t.compiled.Validate(interface{}(args)); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("invalid arguments for %s: %s", t.Definition.Name, ve.Causes[0].Error())
		}
		return fmt.Errorf("invalid arguments for %s: %s", t.Definition.Name, err)
	}
	return nil
}

// Call runs the handler.
func (t *Tool) Call(ctx context.Context, tenantID string, args map[string]interface{}) (interface{}, error) {
	return t.handler(ctx, tenantID, args)
}

// Registry is the immutable, process-wide tool catalog, built once at
// startup.
type Registry struct {
	store *store.Store
	tools map[string]*Tool
	order []string
}

// NewRegistry builds the catalog and compiles every tool's input schema.
func NewRegistry(st *store.Store) (*Registry, error) {
	r := &Registry{
		store: st,
		tools: make(map[string]*Tool),
	}
	for _, t := range r.catalog() {
		if err := r.register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(t *Tool) error {
	name := t.Definition.Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool %q", name)
	}

	raw, err := json.Marshal(t.Definition.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal schema for %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	url := "tool://" + name
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("add schema for %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", name, err)
	}
	t.compiled = compiled

	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the full catalog in registration order, for
// tools/list.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

func boolPtr(b bool) *bool { return &b }
