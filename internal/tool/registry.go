package tool

import (
	"context"
	"fmt"
)

// Handler is the capability bound to a tool name. The binding is fixed at
// registration time; dispatch is a map lookup, never reflection.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Common sentinel errors.
var (
	ErrDuplicateTool = fmt.Errorf("tool name already registered")
	ErrUnknownTool   = fmt.Errorf("tool not registered")
)

type registration struct {
	decl    Declaration
	handler Handler
}

// Registry holds the declared tool set. It is built once at process start
// and treated as read-only afterwards, so lookups take no lock.
//
// Registration order is preserved: some models weight earlier declarations
// more heavily, so Declarations() must be stable.
type Registry struct {
	entries []registration
	byName  map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a declaration with its bound handler.
// Returns ErrDuplicateTool if the name is already taken.
func (r *Registry) Register(decl Declaration, handler Handler) error {
	if decl.Name == "" {
		return fmt.Errorf("tool declaration has empty name")
	}
	if handler == nil {
		return fmt.Errorf("tool %q has nil handler", decl.Name)
	}
	if _, exists := r.byName[decl.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, decl.Name)
	}
	if decl.Kind == "" {
		decl.Kind = ReadOnly
	}
	r.byName[decl.Name] = len(r.entries)
	r.entries = append(r.entries, registration{decl: decl, handler: handler})
	return nil
}

// MustRegister is Register for static startup wiring; it panics on error,
// which can only happen on a programming mistake.
func (r *Registry) MustRegister(decl Declaration, handler Handler) {
	if err := r.Register(decl, handler); err != nil {
		panic(err)
	}
}

// Lookup resolves a tool name to its declaration.
// Returns ErrUnknownTool if the name is not registered.
func (r *Registry) Lookup(name string) (Declaration, error) {
	i, ok := r.byName[name]
	if !ok {
		return Declaration{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return r.entries[i].decl, nil
}

// handlerFor returns the bound handler, or nil when the name is unknown.
func (r *Registry) handlerFor(name string) Handler {
	i, ok := r.byName[name]
	if !ok {
		return nil
	}
	return r.entries[i].handler
}

// Declarations returns all declarations in registration order.
// The returned slice is a copy.
func (r *Registry) Declarations() []Declaration {
	decls := make([]Declaration, len(r.entries))
	for i, e := range r.entries {
		decls[i] = e.decl
	}
	return decls
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.entries)
}
