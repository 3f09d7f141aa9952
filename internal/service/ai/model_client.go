package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"askbridge/internal/models"
	"askbridge/internal/service/ai/cli"
)

// ModelClient answers chats through a hosted chat-model API instead of a
// local CLI. It has no fallback: failures surface to the caller.
type ModelClient struct {
	tool      models.Tool
	chatModel model.BaseChatModel
	modelName string
	logger    zerolog.Logger
}

func NewModelClient(tool models.Tool, chatModel model.BaseChatModel, modelName string, logger zerolog.Logger) *ModelClient {
	return &ModelClient{
		tool:      tool,
		chatModel: chatModel,
		modelName: modelName,
		logger:    logger.With().Str("client", string(tool)+"-api").Logger(),
	}
}

// APIConfig selects and authenticates a hosted model.
type APIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIModelClient serves codex requests through an OpenAI-compatible API.
func NewOpenAIModelClient(ctx context.Context, cfg APIConfig, logger zerolog.Logger) (*ModelClient, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init openai chat model: %w", err)
	}
	return NewModelClient(models.ToolCodex, chatModel, cfg.Model, logger), nil
}

// NewClaudeModelClient serves claude requests through the Anthropic API.
func NewClaudeModelClient(ctx context.Context, cfg APIConfig, logger zerolog.Logger) (*ModelClient, error) {
	var baseURL *string
	if cfg.BaseURL != "" {
		baseURL = &cfg.BaseURL
	}
	chatModel, err := claude.NewChatModel(ctx, &claude.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   baseURL,
		MaxTokens: 3000,
	})
	if err != nil {
		return nil, fmt.Errorf("init claude chat model: %w", err)
	}
	return NewModelClient(models.ToolClaude, chatModel, cfg.Model, logger), nil
}

func (c *ModelClient) Supports(tool models.Tool) bool { return tool == c.tool }

// Chat streams the completion and returns the concatenated chunks.
func (c *ModelClient) Chat(ctx context.Context, messages []models.ChatMessage, opts ChatOptions) (*ChatResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = cli.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stream, err := c.chatModel.Stream(ctx, convertMessages(messages))
	if err != nil {
		return nil, fmt.Errorf("%s model stream: %w", c.tool, err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s model recv: %w", c.tool, err)
		}
		content.WriteString(chunk.Content)
	}

	c.logger.Debug().Dur("duration", time.Since(start)).Msg("model answered")
	return &ChatResult{
		Content: strings.TrimSpace(content.String()),
		Raw: map[string]any{
			"source":     string(c.tool) + "-api",
			"model":      c.modelName,
			"durationMs": time.Since(start).Milliseconds(),
		},
	}, nil
}

func convertMessages(messages []models.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{Role: role, Content: msg.Content})
	}
	return out
}
