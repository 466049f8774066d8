package toolcall_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelgate/internal/models"
	"modelgate/internal/toolcall"
)

type recordingParser struct {
	calls []models.ToolCall
	err   error
	seen  []string
}

func (p *recordingParser) Parse(text string) ([]models.ToolCall, error) {
	p.seen = append(p.seen, text)
	return p.calls, p.err
}

var _ = Describe("Formatter", func() {
	toolText := `<tool_call>{"name": "lookup", "arguments": {"q": "x"}}</tool_call>`

	It("returns an empty, non-nil list for any text by default", func() {
		f := toolcall.NewFormatter(nil)

		for _, text := range []string{"", "plain answer", toolText} {
			calls, err := f.Format(models.GenerationResult{Text: text}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).NotTo(BeNil())
			Expect(calls).To(BeEmpty())
		}
	})

	It("does not consult the parser when no tools were offered", func() {
		parser := &recordingParser{calls: []models.ToolCall{{Name: "lookup"}}}
		f := toolcall.NewFormatter(parser)

		calls, err := f.Format(models.GenerationResult{Text: toolText}, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(BeEmpty())
		Expect(parser.seen).To(BeEmpty())
	})

	It("delegates to a custom parser when tools were offered", func() {
		parser := &recordingParser{calls: []models.ToolCall{{
			ID:        "call_1",
			Name:      "lookup",
			Arguments: json.RawMessage(`{"q":"x"}`),
		}}}
		f := toolcall.NewFormatter(parser)

		calls, err := f.Format(models.GenerationResult{Text: toolText}, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Name).To(Equal("lookup"))
		Expect(parser.seen).To(ConsistOf(toolText))
	})

	It("normalises a nil parser result to an empty list", func() {
		f := toolcall.NewFormatter(&recordingParser{})

		calls, err := f.Format(models.GenerationResult{Text: "x"}, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).NotTo(BeNil())
	})

	It("surfaces parser errors", func() {
		f := toolcall.NewFormatter(&recordingParser{err: errors.New("bad call")})

		_, err := f.Format(models.GenerationResult{Text: "x"}, true)
		Expect(err).To(MatchError("bad call"))
	})
})
