package ai

import (
	"context"
	"fmt"
	"time"

	"askbridge/internal/models"
)

// ChatOptions tunes a single backend call.
type ChatOptions struct {
	// Timeout bounds the call; zero selects the backend default.
	Timeout time.Duration
}

// ChatResult is a backend answer plus backend-specific diagnostics.
type ChatResult struct {
	Content string
	Raw     map[string]any
}

// ChatClient is one language-model backend.
type ChatClient interface {
	Supports(tool models.Tool) bool
	Chat(ctx context.Context, messages []models.ChatMessage, opts ChatOptions) (*ChatResult, error)
}

// Registry is an ordered list of clients; the first match wins.
type Registry struct {
	clients []ChatClient
}

func NewRegistry(clients ...ChatClient) *Registry {
	return &Registry{clients: append([]ChatClient(nil), clients...)}
}

// Resolve returns the first registered client supporting tool.
func (r *Registry) Resolve(tool models.Tool) (ChatClient, error) {
	for _, c := range r.clients {
		if c.Supports(tool) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrNoClientForTool, tool)
}

// Service dispatches chats to the registry's clients.
type Service struct {
	registry *Registry
}

func NewService(registry *Registry) *Service {
	return &Service{registry: registry}
}

// Chat resolves the client for tool and delegates to it. Client errors are
// returned unchanged.
func (s *Service) Chat(ctx context.Context, tool models.Tool, messages []models.ChatMessage, opts ChatOptions) (*ChatResult, error) {
	client, err := s.registry.Resolve(tool)
	if err != nil {
		return nil, err
	}
	return client.Chat(ctx, messages, opts)
}
