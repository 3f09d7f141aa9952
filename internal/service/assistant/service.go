// Package assistant runs one ask cycle: history lookup, prompt assembly,
// backend call, formatting and history update.
package assistant

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"askbridge/internal/models"
	"askbridge/internal/service/ai"
	"askbridge/internal/service/format"
	"askbridge/internal/service/prompt"
)

// DefaultMaxHistory is the history length kept after each exchange.
const DefaultMaxHistory = 50

// ConversationStore is the subset of the conversation store the service needs.
type ConversationStore interface {
	GetOrCreate(id string) models.Conversation
	Append(id string, msgs ...models.ChatMessage) error
	Trim(id string, max int) error
}

// PromptBuilders resolves a fresh prompt builder per tool.
type PromptBuilders interface {
	Resolve(tool models.Tool) (prompt.Builder, error)
}

// ChatService sends a message sequence to the backend for tool.
type ChatService interface {
	Chat(ctx context.Context, tool models.Tool, messages []models.ChatMessage, opts ai.ChatOptions) (*ai.ChatResult, error)
}

// Formatter structures a raw answer.
type Formatter interface {
	Format(c format.Context) format.Response
}

// Options tunes the service. Zero values select defaults.
type Options struct {
	MaxHistory int
	// DefaultTimeout applies when a request carries no timeout of its own.
	DefaultTimeout time.Duration
	// Lifetime bounds backend calls instead of the request context; the
	// server cancels it to stop in-flight CLI processes on shutdown.
	Lifetime context.Context
}

type Service struct {
	store     ConversationStore
	builders  PromptBuilders
	chat      ChatService
	formatter Formatter
	opts      Options
	logger    zerolog.Logger
}

func NewService(store ConversationStore, builders PromptBuilders, chat ChatService, formatter Formatter, opts Options, logger zerolog.Logger) *Service {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.Lifetime == nil {
		opts.Lifetime = context.Background()
	}
	return &Service{
		store:     store,
		builders:  builders,
		chat:      chat,
		formatter: formatter,
		opts:      opts,
		logger:    logger.With().Str("component", "assistant").Logger(),
	}
}

// Ask executes one request. The backend call is not cancelled when ctx is;
// only the backend timeout or the end of Options.Lifetime ends it. A failed backend call leaves the
// conversation history unchanged.
func (s *Service) Ask(ctx context.Context, req models.AskRequest) (*models.AskResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	conv := s.store.GetOrCreate(req.ConversationID)
	logger := s.logger.With().Str("conversation_id", conv.ID).Str("tool", string(req.Tool)).Logger()
	logger.Info().Int("history", len(conv.History)).Msg("ask started")

	builder, err := s.builders.Resolve(req.Tool)
	if err != nil {
		return nil, err
	}

	designContext := strings.TrimSpace(req.DesignContext)
	messages := builder.
		WithDesignContext(designContext).
		WithHistory(conv.History).
		WithUser(req.UserInput).
		Build()

	timeout := req.Options.Timeout()
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}
	chatCtx, cancel := s.backendContext(ctx)
	defer cancel()
	result, err := s.chat.Chat(chatCtx, req.Tool, messages, ai.ChatOptions{Timeout: timeout})
	if err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("chat failed")
		return nil, err
	}

	formatted := s.formatter.Format(format.Context{
		Tool:            req.Tool,
		UserInput:       req.UserInput,
		DesignContext:   designContext,
		OriginalContent: result.Content,
		History:         conv.History,
	})

	if err := s.store.Append(conv.ID,
		models.ChatMessage{Role: models.RoleUser, Content: req.UserInput},
		models.ChatMessage{Role: models.RoleAssistant, Content: result.Content},
	); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	if err := s.store.Trim(conv.ID, s.opts.MaxHistory); err != nil {
		return nil, fmt.Errorf("trim history: %w", err)
	}

	raw := make(map[string]any, len(result.Raw)+1)
	maps.Copy(raw, result.Raw)
	raw["formatter"] = formatted.Diagnostics(result.Content)

	logger.Info().
		Dur("duration", time.Since(start)).
		Interface("source", result.Raw["source"]).
		Msg("ask finished")
	return &models.AskResult{
		Content:        formatted.Text,
		ConversationID: conv.ID,
		Raw:            raw,
	}, nil
}

// backendContext keeps the values of the request context but takes its
// cancellation from the service lifetime.
func (s *Service) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	chatCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.opts.Lifetime, cancel)
	return chatCtx, func() {
		stop()
		cancel()
	}
}
