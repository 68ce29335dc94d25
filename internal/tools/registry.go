// Package tools implements the name→handler dispatch contract and the
// built-in tool set (file I/O, search, directory listing, bounded shell
// execution).
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sheepbun/yips/internal/apperrors"
	"github.com/sheepbun/yips/internal/model"
)

// Handler executes one tool invocation against already-parsed JSON
// arguments and returns a uniform result. A handler must respect ctx
// cancellation rather than blocking indefinitely.
type Handler func(ctx context.Context, arguments json.RawMessage) (model.ToolOutput, error)

// Invocation carries the calling session's identity and working directory
// alongside a tool call, for handlers (skills, in particular) that need to
// report it onward rather than operate on bare arguments. It travels on ctx
// rather than as a Handler parameter, so built-in handlers that don't need
// it stay untouched.
type Invocation struct {
	SessionID        string
	WorkingDirectory string
}

type invocationContextKey struct{}

// WithInvocation attaches inv to ctx for a handler to retrieve via
// InvocationFromContext.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationContextKey{}, inv)
}

// InvocationFromContext retrieves the Invocation attached by WithInvocation,
// if any.
func InvocationFromContext(ctx context.Context) (Invocation, bool) {
	inv, ok := ctx.Value(invocationContextKey{}).(Invocation)
	return inv, ok
}

// entry pairs a tool's definition and handler with its compiled argument
// schema, built once at registration so a malformed call fails fast.
type entry struct {
	def     model.ToolDefinition
	handler Handler
	schema  *jsonschema.Schema
}

// Registry is a thread-safe name→handler map. It starts empty;
// RegisterBuiltins adds the built-in tool set, and skills are registered
// and unregistered at runtime as they are discovered or reloaded.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry. Callers typically follow with
// RegisterBuiltins.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds or replaces a tool definition and handler. The definition's
// Parameters is compiled as a JSON-Schema; a definition with an
// uncompilable schema is rejected.
func (r *Registry) Register(def model.ToolDefinition, handler Handler) error {
	schema, err := compileSchema(def.Name, def.Parameters)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Name] = entry{def: def, handler: handler, schema: schema}
	return nil
}

// Unregister removes a tool by name, used when a skill directory is
// removed or its manifest becomes invalid.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Definitions returns every registered tool's definition, for passing to
// the LLM as available_tools().
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]model.ToolDefinition, 0, len(r.entries))
	for _, e := range r.entries {
		defs = append(defs, e.def)
	}
	return defs
}

// Execute dispatches arguments (a JSON-encoded object, per spec.md §3's
// ToolCall shape) to the named tool. An unknown name or malformed
// arguments JSON is returned as a *apperrors.ToolError; the caller (the
// turn engine) converts it into a failed ToolOutput without aborting the
// turn.
func (r *Registry) Execute(ctx context.Context, name string, argumentsJSON string) (model.ToolOutput, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return model.ToolOutput{}, apperrors.NewToolError(name, apperrors.ToolErrorNotFound, apperrors.ErrToolNotFound)
	}

	var raw json.RawMessage = []byte(argumentsJSON)
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return model.ToolOutput{}, apperrors.NewToolError(name, apperrors.ToolErrorInvalidInput, err)
	}

	if e.schema != nil {
		if err := e.schema.Validate(decoded); err != nil {
			return model.ToolOutput{}, apperrors.NewToolError(name, apperrors.ToolErrorInvalidInput, err)
		}
	}

	output, err := e.handler(ctx, raw)
	if err != nil {
		return model.ToolOutput{}, apperrors.AsToolError(name, err)
	}
	return output, nil
}

func compileSchema(name string, parameters map[string]any) (*jsonschema.Schema, error) {
	if len(parameters) == 0 {
		return nil, nil
	}

	encoded, err := json.Marshal(parameters)
	if err != nil {
		return nil, apperrors.NewToolError(name, apperrors.ToolErrorInvalidInput, err)
	}

	compiler := jsonschema.NewCompiler()
	resource := "tool://" + name + "/parameters.json"
	if err := compiler.AddResource(resource, bytes.NewReader(encoded)); err != nil {
		return nil, apperrors.NewToolError(name, apperrors.ToolErrorInvalidInput, err)
	}

	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, apperrors.NewToolError(name, apperrors.ToolErrorInvalidInput, err)
	}
	return schema, nil
}
