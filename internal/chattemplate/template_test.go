package chattemplate_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelgate/internal/chattemplate"
	"modelgate/internal/models"
)

const qwenDefaultSystem = "You are Qwen, created by Alibaba Cloud. You are a helpful assistant."

var _ = Describe("Builtin catalog", func() {
	var catalog *chattemplate.Catalog

	BeforeEach(func() {
		var err error
		catalog, err = chattemplate.Builtin()
		Expect(err).NotTo(HaveOccurred())
	})

	It("matches Qwen model ids case-insensitively", func() {
		tpl, err := catalog.Lookup("Qwen/Qwen2.5-32B-Instruct-AWQ")
		Expect(err).NotTo(HaveOccurred())
		Expect(tpl.Name()).To(Equal("chatml"))
	})

	It("matches Llama 3 model ids", func() {
		tpl, err := catalog.Lookup("meta-llama/Meta-Llama-3-8B-Instruct")
		Expect(err).NotTo(HaveOccurred())
		Expect(tpl.Name()).To(Equal("llama3"))
	})

	It("reports unknown models", func() {
		_, err := catalog.Lookup("acme/unknown-7b")
		Expect(err).To(MatchError(chattemplate.ErrTemplateNotFound))
	})

	Describe("chatml rendering", func() {
		var tpl *chattemplate.Template

		BeforeEach(func() {
			var err error
			tpl, err = catalog.Lookup("Qwen/Qwen2.5-32B-Instruct-AWQ")
			Expect(err).NotTo(HaveOccurred())
		})

		It("inserts the default system prompt when the conversation has none", func() {
			out, err := tpl.Render([]models.Message{
				{Role: models.RoleUser, Content: "hi"},
			}, true)
			Expect(err).NotTo(HaveOccurred())

			Expect(out).To(HavePrefix("<|im_start|>system\n" + qwenDefaultSystem + "<|im_end|>"))
			Expect(out).To(ContainSubstring("<|im_start|>user\nhi<|im_end|>"))
			Expect(out).To(HaveSuffix("<|im_start|>assistant\n"))
		})

		It("keeps a caller system message instead of the default", func() {
			out, err := tpl.Render([]models.Message{
				{Role: models.RoleSystem, Content: "Be terse."},
				{Role: models.RoleUser, Content: "hi"},
			}, true)
			Expect(err).NotTo(HaveOccurred())

			Expect(out).To(HavePrefix("<|im_start|>system\nBe terse.<|im_end|>"))
			Expect(out).NotTo(ContainSubstring(qwenDefaultSystem))
		})

		It("omits the assistant marker when not asked for", func() {
			out, err := tpl.Render([]models.Message{
				{Role: models.RoleUser, Content: "hi"},
			}, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).NotTo(ContainSubstring("<|im_start|>assistant"))
		})

		It("preserves message order", func() {
			out, err := tpl.Render([]models.Message{
				{Role: models.RoleUser, Content: "first"},
				{Role: models.RoleAssistant, Content: "second"},
				{Role: models.RoleUser, Content: "third"},
			}, true)
			Expect(err).NotTo(HaveOccurred())

			first := strings.Index(out, "first")
			second := strings.Index(out, "second")
			third := strings.Index(out, "third")
			Expect(first).To(BeNumerically(">", 0))
			Expect(second).To(BeNumerically(">", first))
			Expect(third).To(BeNumerically(">", second))
		})

		It("is deterministic", func() {
			msgs := []models.Message{{Role: models.RoleUser, Content: "same"}}
			a, err := tpl.Render(msgs, true)
			Expect(err).NotTo(HaveOccurred())
			b, err := tpl.Render(msgs, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		})

		It("does not escape markup in content", func() {
			out, err := tpl.Render([]models.Message{
				{Role: models.RoleUser, Content: `<b>"x" & y</b>`},
			}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`<b>"x" & y</b>`))
		})
	})
})

var _ = Describe("Catalog files", func() {
	const custom = `
templates:
  - name: plain
    match: ["acme/"]
    source: "{% for message in messages %}{{ message['role'] }}: {{ message['content'] }}\n{% endfor %}{% if add_generation_prompt %}assistant:{% endif %}"
`

	It("parses and renders a custom template", func() {
		catalog, err := chattemplate.Parse([]byte(custom))
		Expect(err).NotTo(HaveOccurred())

		tpl, err := catalog.Lookup("acme/model-1")
		Expect(err).NotTo(HaveOccurred())

		out, err := tpl.Render([]models.Message{{Role: models.RoleUser, Content: "hi"}}, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("user: hi\nassistant:"))
	})

	It("searches merged overrides first", func() {
		builtin, err := chattemplate.Builtin()
		Expect(err).NotTo(HaveOccurred())
		override, err := chattemplate.Parse([]byte(`
templates:
  - name: qwen-override
    match: ["qwen"]
    source: "{{ messages[0]['content'] }}"
`))
		Expect(err).NotTo(HaveOccurred())

		tpl, err := builtin.Merge(override).Lookup("Qwen/Qwen2.5-7B-Instruct")
		Expect(err).NotTo(HaveOccurred())
		Expect(tpl.Name()).To(Equal("qwen-override"))
	})

	It("loads a catalog from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "templates.yaml")
		Expect(os.WriteFile(path, []byte(custom), 0o600)).To(Succeed())

		catalog, err := chattemplate.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(catalog.Templates).To(HaveLen(1))
	})

	DescribeTable("rejects invalid catalogs",
		func(data string, msg string) {
			_, err := chattemplate.Parse([]byte(data))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(msg))
		},
		Entry("missing name", "templates:\n  - match: [x]\n    source: y\n", "name must not be empty"),
		Entry("missing match", "templates:\n  - name: a\n    source: y\n", "match pattern"),
		Entry("missing source", "templates:\n  - name: a\n    match: [x]\n", "source must not be empty"),
		Entry("bad yaml", "templates: [", "parse chat template catalog"),
	)

	It("rejects templates that do not compile", func() {
		_, err := chattemplate.Compile("broken", "{% for x in %}", "")
		Expect(err).To(HaveOccurred())
	})
})
