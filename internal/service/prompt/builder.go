package prompt

import (
	"strings"

	"askbridge/internal/models"
)

// DesignContextLabel prefixes the system message that carries the canvas description.
const DesignContextLabel = "【Figma構成】"

const (
	codexInstruction  = "あなたはFigmaのUI/UXデザイナーです。簡潔かつ実践的に提案してください。"
	claudeInstruction = "あなたはUI/UXパートナー。箇条書きで「改善→理由→次アクション」を簡潔に出力。"
)

// Builder accumulates the message sequence sent to a backend.
type Builder interface {
	WithDesignContext(text string) Builder
	WithHistory(history []models.ChatMessage) Builder
	WithUser(input string) Builder
	Build() []models.ChatMessage
}

type builder struct {
	messages []models.ChatMessage
}

func newBuilder(instruction string) *builder {
	return &builder{
		messages: []models.ChatMessage{{Role: models.RoleSystem, Content: instruction}},
	}
}

// NewCodexBuilder seeds the concise, practical-suggestion tone.
func NewCodexBuilder() Builder { return newBuilder(codexInstruction) }

// NewClaudeBuilder seeds the "improvement -> rationale -> next action" bullet format.
func NewClaudeBuilder() Builder { return newBuilder(claudeInstruction) }

func (b *builder) WithDesignContext(text string) Builder {
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		b.messages = append(b.messages, models.ChatMessage{
			Role:    models.RoleSystem,
			Content: DesignContextLabel + "\n" + trimmed,
		})
	}
	return b
}

func (b *builder) WithHistory(history []models.ChatMessage) Builder {
	b.messages = append(b.messages, history...)
	return b
}

func (b *builder) WithUser(input string) Builder {
	b.messages = append(b.messages, models.ChatMessage{Role: models.RoleUser, Content: input})
	return b
}

func (b *builder) Build() []models.ChatMessage {
	return models.CloneMessages(b.messages)
}
