// Package prompt turns a conversation, and optionally the tools offered to
// the model, into the single text prompt handed to the inference engine.
package prompt

import (
	"errors"
	"strings"

	"modelgate/internal/models"
)

const toolPreamble = "You are a helpful assistant with access to the following tools:"

// Renderer applies a model chat template.
type Renderer interface {
	Render(messages []models.Message, addGenerationPrompt bool) (string, error)
}

// Builder renders prompts with a fixed chat template.
type Builder struct {
	renderer Renderer
}

// NewBuilder constructs a prompt builder backed by the given template.
func NewBuilder(renderer Renderer) (*Builder, error) {
	if renderer == nil {
		return nil, errors.New("renderer must not be nil")
	}
	return &Builder{renderer: renderer}, nil
}

// Build renders messages as a prompt that opens the assistant turn. When tools
// are supplied a synthesized system message listing them is rendered first.
// Message emptiness is the caller's concern.
func (b *Builder) Build(messages []models.Message, tools []models.ToolDefinition) (string, error) {
	return b.renderer.Render(WithTools(messages, tools), true)
}

// WithTools returns a new message slice with the tool system message in front.
// The input slice is never modified. Without tools the messages are returned
// unchanged.
func WithTools(messages []models.Message, tools []models.ToolDefinition) []models.Message {
	if len(tools) == 0 {
		return messages
	}

	out := make([]models.Message, 0, len(messages)+1)
	out = append(out, ToolSystemMessage(tools))
	out = append(out, messages...)
	return out
}

// ToolSystemMessage lists every tool as "- name: description", one per line.
func ToolSystemMessage(tools []models.ToolDefinition) models.Message {
	var b strings.Builder
	b.WriteString(toolPreamble)
	for _, tool := range tools {
		b.WriteString("\n- ")
		b.WriteString(tool.Name)
		b.WriteString(": ")
		b.WriteString(tool.Description)
	}

	return models.Message{
		Role:    models.RoleSystem,
		Content: b.String(),
	}
}
