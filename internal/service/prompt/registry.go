package prompt

import "askbridge/internal/models"

// Factory constructs a fresh builder for one request.
type Factory func() Builder

// Registry maps a backend to its builder constructor.
type Registry struct {
	factories map[models.Tool]Factory
}

// NewRegistry returns a registry with the built-in backends registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[models.Tool]Factory)}
	r.Register(models.ToolCodex, NewCodexBuilder)
	r.Register(models.ToolClaude, NewClaudeBuilder)
	return r
}

// Register adds or replaces the constructor for tool.
func (r *Registry) Register(tool models.Tool, factory Factory) {
	r.factories[tool] = factory
}

// Resolve returns a new builder for tool.
func (r *Registry) Resolve(tool models.Tool) (Builder, error) {
	factory, ok := r.factories[tool]
	if !ok || factory == nil {
		return nil, &models.UnsupportedToolError{Tool: string(tool)}
	}
	return factory(), nil
}
