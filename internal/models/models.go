package models

import "encoding/json"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether the role is one the chat templates understand.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message represents a single conversational turn. Slices of messages are
// ordered by turn and must never be reordered.
type Message struct {
	Role    Role
	Content string
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a structured call extracted from a completion.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// GenerationResult is the final cumulative output of one generation.
type GenerationResult struct {
	Text               string
	PromptTokenIDs     []int
	CompletionTokenIDs []int
	FinishReason       string
}

// Usage derives token accounting from the token id sequences.
func (r GenerationResult) Usage() Usage {
	return NewUsage(len(r.PromptTokenIDs), len(r.CompletionTokenIDs))
}

// Usage records token accounting information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// NewUsage builds a Usage whose total is always the sum of its parts.
func NewUsage(promptTokens, completionTokens int) Usage {
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// ChatRequest is the canonical representation of an inbound chat request.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	Stop        []string
}

// Completion is the result of one chat request, owned by the caller.
type Completion struct {
	ID           string
	Model        string
	Text         string
	ToolCalls    []ToolCall
	Usage        Usage
	FinishReason string
}
