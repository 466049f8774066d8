// Package chattemplate renders chat conversations into model prompts using the
// Jinja chat templates published alongside model weights.
package chattemplate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nikolalohinski/gonja"
	"github.com/nikolalohinski/gonja/exec"

	"modelgate/internal/models"
)

// ErrTemplateNotFound indicates no catalog entry matches the model id.
var ErrTemplateNotFound = errors.New("chat template not found")

// Template is a compiled chat template. It is safe for concurrent use.
type Template struct {
	name          string
	defaultSystem string
	tpl           *exec.Template
}

// Compile parses a Jinja chat template.
func Compile(name, source, defaultSystem string) (*Template, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("chat template %q has an empty source", name)
	}

	tpl, err := gonja.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("compile chat template %q: %w", name, err)
	}

	return &Template{
		name:          name,
		defaultSystem: defaultSystem,
		tpl:           tpl,
	}, nil
}

// Name returns the catalog name of the template.
func (t *Template) Name() string {
	return t.name
}

// Render turns messages into a prompt. When addGenerationPrompt is set the
// prompt ends with the marker that opens the assistant turn.
func (t *Template) Render(messages []models.Message, addGenerationPrompt bool) (string, error) {
	turns := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, map[string]any{
			"role":    string(msg.Role),
			"content": msg.Content,
		})
	}

	out, err := t.tpl.Execute(gonja.Context{
		"messages":              turns,
		"add_generation_prompt": addGenerationPrompt,
		"default_system":        t.defaultSystem,
	})
	if err != nil {
		return "", fmt.Errorf("render chat template %q: %w", t.name, err)
	}
	return out, nil
}
