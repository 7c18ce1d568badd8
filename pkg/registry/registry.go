package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolFunction defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a textual result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (string, error)

// Registry manages the available tools.
// It is populated once at startup and only read afterwards; reads are safe from
// any number of concurrent runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

var _ ports.ToolProvider = (*Registry)(nil)

type registeredTool struct {
	def    domain.Tool
	schema *jsonschema.Schema
	fn     ToolFunction
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registeredTool),
	}
}

// Register adds a tool to the registry.
// The tool's Parameters are compiled as a JSON Schema; arguments are validated
// against it before every invocation.
func (r *Registry) Register(def domain.Tool, fn ToolFunction) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if name == domain.End {
		return fmt.Errorf("tool name %q is reserved", name)
	}
	if fn == nil {
		return fmt.Errorf("tool %s missing handler", name)
	}
	schema, err := compileSchema(name, def.Parameters)
	if err != nil {
		return fmt.Errorf("tool %s schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	def.Name = name
	r.tools[name] = &registeredTool{def: def, schema: schema, fn: fn}
	return nil
}

// MustRegister is like Register but panics on error. Intended for static wiring.
func (r *Registry) MustRegister(def domain.Tool, fn ToolFunction) {
	if err := r.Register(def, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (ports.Tool, bool) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return t, true
}

// Execute looks up a tool by name and executes it.
// Returns an error wrapping domain.ErrToolNotFound if the tool is not registered.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	return t.Invoke(ctx, args)
}

// Definitions returns the registered tool definitions sorted by name.
func (r *Registry) Definitions() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.def)
	}
	slices.SortFunc(out, func(a, b domain.Tool) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names returns the registered tool names sorted.
func (r *Registry) Names() []string {
	defs := r.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Subset returns a new registry holding only the named tools, e.g. the tools
// bound to a single stage. Unknown names are an error.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
		}
		sub.tools[name] = t
	}
	return sub, nil
}

func (t *registeredTool) Definition() domain.Tool {
	return t.def
}

func (t *registeredTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := validate(t.schema, args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", t.def.Name, err)
	}
	return t.fn(ctx, args)
}

// Decode maps tool arguments onto a typed struct using `mapstructure` tags.
// Weak typing is enabled so JSON numbers decode into int fields.
func Decode(args map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		params = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	url := name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// validate runs the schema against a JSON round-trip of args, so Go-native
// values (int, []string) are checked the same way decoded JSON would be.
func validate(schema *jsonschema.Schema, args map[string]any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
