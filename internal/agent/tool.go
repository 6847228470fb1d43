package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mohammad-safakhou/hermes/provider"
)

// ErrUnknownTool is returned when the model asks for a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is a capability the model may invoke by name. Implementations return
// failures either as text or as an error; the agent turns errors into text
// before the model or any guard sees them.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the argument object.
	Schema() json.RawMessage
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

type registered struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry stores tools keyed by name with their compiled argument schemas.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registered
}

// NewRegistry registers the given tools, failing on the first invalid one.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]registered)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles the tool schema and stores it. Re-registering a name replaces it.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool must be provided")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name must be provided")
	}
	raw := t.Schema()
	if len(raw) == 0 {
		raw = json.RawMessage(`{"type":"object"}`)
	}

	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("add schema resource %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = registered{tool: t, schema: compiled}
	return nil
}

// Names lists registered tools in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Specs describes the registered tools to the model.
func (r *Registry) Specs() []provider.ToolSpec {
	if r == nil {
		return nil
	}
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]provider.ToolSpec, 0, len(names))
	for _, n := range names {
		t := r.tools[n].tool
		schema := t.Schema()
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		specs = append(specs, provider.ToolSpec{Name: n, Description: t.Description(), Parameters: schema})
	}
	return specs
}

// Call validates args against the tool schema and invokes the tool.
func (r *Registry) Call(ctx context.Context, name, args string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if args == "" {
		args = "{}"
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(args), &doc); err != nil {
		return "", fmt.Errorf("unmarshal arguments: %w", err)
	}
	if err := entry.schema.Validate(doc); err != nil {
		return "", fmt.Errorf("arguments validation failed: %w", err)
	}
	return entry.tool.Invoke(ctx, json.RawMessage(args))
}
