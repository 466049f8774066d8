package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelgate/internal/logger"
)

var _ = Describe("Logger", func() {
	It("writes JSON lines", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithJSON(true), logger.WithWriter(&buf))
		log.Info("engine ready", "model", "qwen")

		var line map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &line)).To(Succeed())
		Expect(line).To(HaveKeyWithValue("msg", "engine ready"))
		Expect(line).To(HaveKeyWithValue("model", "qwen"))
		Expect(line).To(HaveKeyWithValue("level", "INFO"))
	})

	It("writes pretty lines", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf))
		log.Info("engine ready", "model", "qwen")

		Expect(buf.String()).To(ContainSubstring("engine ready"))
		Expect(buf.String()).To(ContainSubstring("model=qwen"))
	})

	It("filters below the configured level", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithJSON(true), logger.WithWriter(&buf), logger.WithLevel(slog.LevelWarn))
		log.Info("quiet")
		Expect(buf.Len()).To(BeZero())

		log.Warn("loud")
		Expect(buf.String()).To(ContainSubstring("loud"))
	})

	It("enables debug output", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithDebug(true), logger.WithWriter(&buf))
		log.Debug("prompt rendered")
		Expect(buf.String()).To(ContainSubstring("prompt rendered"))
	})

	DescribeTable("ParseLevel",
		func(input string, expected slog.Level) {
			level, err := logger.ParseLevel(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(level).To(Equal(expected))
		},
		Entry("debug", "debug", slog.LevelDebug),
		Entry("default", "", slog.LevelInfo),
		Entry("upper case", "INFO", slog.LevelInfo),
		Entry("warning", "warning", slog.LevelWarn),
		Entry("error", "error", slog.LevelError),
	)

	It("rejects unknown levels", func() {
		_, err := logger.ParseLevel("loud")
		Expect(err).To(HaveOccurred())
	})

	It("discards everything with Nop", func() {
		Expect(logger.Nop().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})
