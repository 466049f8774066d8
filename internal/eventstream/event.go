package eventstream

import (
	"time"

	"github.com/google/uuid"

	"modelgate/internal/models"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompletionUsage is emitted after every successful completion.
	EventTypeCompletionUsage = "modelgate.completion.usage"
)

// UsageEvent is a transport-neutral record of one completion's token usage.
type UsageEvent struct {
	SchemaVersion int        `json:"schema_version"`
	EventType     string     `json:"event_type"`
	EventID       string     `json:"event_id"`
	EmittedAt     time.Time  `json:"emitted_at"`
	RequestID     string     `json:"request_id"`
	Model         string     `json:"model"`
	Usage         UsageBlock `json:"usage"`
	FinishReason  string     `json:"finish_reason"`
	DurationMs    int64      `json:"duration_ms"`
	ToolsOffered  bool       `json:"tools_offered"`
}

// UsageBlock mirrors the usage object of the response envelope.
type UsageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUsageEvent builds a usage event for a finished completion.
func NewUsageEvent(completion models.Completion, took time.Duration, toolsOffered bool) *UsageEvent {
	return &UsageEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompletionUsage,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		RequestID:     completion.ID,
		Model:         completion.Model,
		Usage: UsageBlock{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
		FinishReason: completion.FinishReason,
		DurationMs:   took.Milliseconds(),
		ToolsOffered: toolsOffered,
	}
}
