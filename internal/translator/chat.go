// Package translator maps the OpenAI-style chat wire format onto the
// canonical request and completion types.
package translator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"modelgate/internal/models"
)

const objectChatCompletion = "chat.completion"

var (
	errUnsupportedStop = errors.New("unsupported stop value")
	errInvalidContent  = errors.New("invalid message content")
	errInvalidTool     = errors.New("invalid tool definition")
)

// ChatCompletionRequest models the POST /chat request payload. Field presence
// is kept so unset sampling knobs fall back to their defaults.
type ChatCompletionRequest struct {
	Messages    []ChatMessage
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	Stop        []string
	Tools       []Tool
}

// UnmarshalJSON parses the loose OpenAI shapes: string or list stop values,
// string or text-segment content.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Messages    []ChatMessage   `json:"messages"`
		MaxTokens   *int            `json:"max_tokens"`
		Temperature *float64        `json:"temperature"`
		TopP        *float64        `json:"top_p"`
		Stop        json.RawMessage `json:"stop"`
		Tools       []Tool          `json:"tools"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	stopValues, err := parseStop(raw.Stop)
	if err != nil {
		return err
	}

	r.Messages = raw.Messages
	r.MaxTokens = raw.MaxTokens
	r.Temperature = raw.Temperature
	r.TopP = raw.TopP
	r.Stop = stopValues
	r.Tools = raw.Tools
	return nil
}

// ToModel converts the wire request into the canonical format. Message
// order is preserved.
func (r ChatCompletionRequest) ToModel() models.ChatRequest {
	msgs := make([]models.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		msgs = append(msgs, models.Message{
			Role:    models.Role(m.Role),
			Content: m.Content,
		})
	}

	var tools []models.ToolDefinition
	if len(r.Tools) > 0 {
		tools = make([]models.ToolDefinition, 0, len(r.Tools))
		for _, t := range r.Tools {
			tools = append(tools, models.ToolDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			})
		}
	}

	var stop []string
	if len(r.Stop) > 0 {
		stop = append(stop, r.Stop...)
	}

	return models.ChatRequest{
		Messages:    msgs,
		Tools:       tools,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
		TopP:        r.TopP,
		Stop:        stop,
	}
}

// ChatMessage captures a single message within the chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON supports string, null and array-of-text content formats.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	content, err := extractMessageContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = strings.TrimSpace(raw.Role)
	m.Content = content
	return nil
}

// Tool is an OpenAI function tool. The type field is optional and, when
// present, must be "function".
type Tool struct {
	Type     string       `json:"type,omitempty"`
	Function ToolFunction `json:"function"`
}

// ToolFunction names and describes a callable function.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// UnmarshalJSON requires the nested function object.
func (t *Tool) UnmarshalJSON(data []byte) error {
	type alias struct {
		Type     string        `json:"type"`
		Function *ToolFunction `json:"function"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode tool: %w", err)
	}
	if raw.Type != "" && raw.Type != "function" {
		return fmt.Errorf("%w: type %q not supported", errInvalidTool, raw.Type)
	}
	if raw.Function == nil {
		return fmt.Errorf("%w: function is required", errInvalidTool)
	}

	t.Type = raw.Type
	t.Function = *raw.Function
	t.Function.Name = strings.TrimSpace(t.Function.Name)
	return nil
}

func extractMessageContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var segments []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		var builder strings.Builder
		for _, segment := range segments {
			if segment.Type != "text" {
				return "", fmt.Errorf("%w: segment type %q not supported", errInvalidContent, segment.Type)
			}
			builder.WriteString(segment.Text)
		}
		return builder.String(), nil
	}

	return "", fmt.Errorf("%w: unsupported content structure", errInvalidContent)
}

func parseStop(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil, errUnsupportedStop
		}
		return []string{single}, nil
	}

	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil {
		out := make([]string, 0, len(multi))
		for _, item := range multi {
			if item == "" {
				return nil, errUnsupportedStop
			}
			out = append(out, item)
		}
		return out, nil
	}
	return nil, errUnsupportedStop
}

// ChatCompletionResponse models the OpenAI-compatible chat response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   OpenAIUsage  `json:"usage"`
}

// ChatChoice represents a single choice in the response payload.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant turn of a choice.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a structured function call in OpenAI form.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the arguments as a JSON-encoded string.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAIUsage mirrors the token usage block in OpenAI responses.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FromCompletion constructs the OpenAI response shape from a completion.
func FromCompletion(createdUnix int64, c *models.Completion) ChatCompletionResponse {
	var calls []ToolCall
	for _, call := range c.ToolCalls {
		args := string(call.Arguments)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: ToolCallFunction{
				Name:      call.Name,
				Arguments: args,
			},
		})
	}

	return ChatCompletionResponse{
		ID:      c.ID,
		Object:  objectChatCompletion,
		Created: createdUnix,
		Model:   c.Model,
		Choices: []ChatChoice{
			{
				Index: 0,
				Message: ResponseMessage{
					Role:      string(models.RoleAssistant),
					Content:   c.Text,
					ToolCalls: calls,
				},
				FinishReason: c.FinishReason,
			},
		},
		Usage: OpenAIUsage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		},
	}
}
