package sse_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelgate/internal/sse"
)

func readAll(input string) []*sse.Event {
	r := sse.NewReader(strings.NewReader(input))
	var events []*sse.Event
	for {
		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		if ev == nil {
			return events
		}
		events = append(events, ev)
	}
}

var _ = Describe("Reader", func() {
	It("parses consecutive events", func() {
		events := readAll("data: {\"text\":\"a\"}\n\ndata: {\"text\":\"ab\"}\n\n")

		Expect(events).To(HaveLen(2))
		Expect(events[0].Data).To(Equal(`{"text":"a"}`))
		Expect(events[1].Data).To(Equal(`{"text":"ab"}`))
	})

	It("reads event names and ids", func() {
		events := readAll("event: error\nid: 7\ndata: {\"message\":\"oom\"}\n\n")

		Expect(events).To(HaveLen(1))
		Expect(events[0].Type).To(Equal("error"))
		Expect(events[0].ID).To(Equal("7"))
	})

	It("joins multi-line data with newlines", func() {
		events := readAll("data: one\ndata: two\n\n")

		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("one\ntwo"))
	})

	It("skips comments and keep-alive blank lines", func() {
		events := readAll(": ping\n\n\n\ndata: x\n\n")

		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("x"))
	})

	It("yields a final event without a trailing blank line", func() {
		events := readAll("data: first\n\ndata: [DONE]")

		Expect(events).To(HaveLen(2))
		Expect(events[1].Data).To(Equal("[DONE]"))
	})

	It("returns nil at the end of an empty stream", func() {
		Expect(readAll("")).To(BeEmpty())
	})
})

var _ = Describe("Write", func() {
	It("writes a named event", func() {
		var buf bytes.Buffer
		Expect(sse.Write(&buf, "error", map[string]string{"message": "oom"})).To(Succeed())
		Expect(buf.String()).To(Equal("event: error\ndata: {\"message\":\"oom\"}\n\n"))
	})

	It("omits the event line for default messages", func() {
		var buf bytes.Buffer
		Expect(sse.Write(&buf, "", map[string]int{"n": 1})).To(Succeed())
		Expect(buf.String()).To(Equal("data: {\"n\":1}\n\n"))
	})

	It("round-trips through the reader", func() {
		var buf bytes.Buffer
		Expect(sse.Write(&buf, "", map[string]string{"text": "hello"})).To(Succeed())

		events := readAll(buf.String())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal(`{"text":"hello"}`))
	})
})
