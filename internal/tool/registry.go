package tool

import (
	"context"
	"sort"
)

// Tool is the uniform capability contract for the data-fetching tools.
// Invoke returns the fetched data or a *Fault describing why the call
// failed. Implementations may return partial data alongside a fault.
type Tool interface {
	Name() string
	Description() string
	RequiredParams() []string
	Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// Registry manages the set of registered tools. Adding a tool means adding
// an implementation and a Register call, not modifying control flow.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry over the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParamSchemas maps each registered tool name to its required parameter
// keys, in the shape the plan validator consumes.
func (r *Registry) ParamSchemas() map[string][]string {
	out := make(map[string][]string, len(r.tools))
	for name, t := range r.tools {
		out[name] = t.RequiredParams()
	}
	return out
}

// stringParam extracts a required string parameter, or reports an
// invalid-parameters fault.
func stringParam(toolName string, params map[string]interface{}, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", NewFault(toolName, CodeInvalidParameters, "missing required parameter %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", NewFault(toolName, CodeInvalidParameters, "parameter %q must be a non-empty string, got %T", key, v)
	}
	return s, nil
}

// intParam extracts an optional integer parameter with a default. JSON
// numbers arrive as float64.
func intParam(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func stringParamOr(params map[string]interface{}, key, def string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return def
}
