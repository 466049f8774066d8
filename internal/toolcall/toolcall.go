// Package toolcall attaches structured tool calls to a generation result.
//
// Extraction is not implemented: the default parser never finds calls, so
// every completion carries an empty tool_calls list even when the model wrote
// one in its own textual convention.
package toolcall

import "modelgate/internal/models"

// Parser extracts tool calls from raw model output.
type Parser interface {
	Parse(text string) ([]models.ToolCall, error)
}

// NoopParser finds no calls in any text.
type NoopParser struct{}

func (NoopParser) Parse(string) ([]models.ToolCall, error) {
	return []models.ToolCall{}, nil
}

// Formatter decides the tool_calls of a completion.
type Formatter struct {
	parser Parser
}

// NewFormatter returns a Formatter using parser, or NoopParser when nil.
func NewFormatter(parser Parser) *Formatter {
	if parser == nil {
		parser = NoopParser{}
	}
	return &Formatter{parser: parser}
}

// Format returns the tool calls for result. The slice is never nil. When no
// tools were offered the parser is not consulted.
func (f *Formatter) Format(result models.GenerationResult, toolsOffered bool) ([]models.ToolCall, error) {
	if !toolsOffered {
		return []models.ToolCall{}, nil
	}

	calls, err := f.parser.Parse(result.Text)
	if err != nil {
		return nil, err
	}
	if calls == nil {
		calls = []models.ToolCall{}
	}
	return calls, nil
}
