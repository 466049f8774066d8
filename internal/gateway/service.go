// Package gateway runs one chat request through the pipeline: validation,
// prompt construction, generation, aggregation and tool-call formatting, in
// that order.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"modelgate/internal/aggregate"
	"modelgate/internal/apperr"
	"modelgate/internal/chattemplate"
	"modelgate/internal/engine"
	"modelgate/internal/eventstream"
	"modelgate/internal/eventstream/nop"
	"modelgate/internal/metrics"
	"modelgate/internal/models"
	"modelgate/internal/prompt"
	"modelgate/internal/sampling"
	"modelgate/internal/toolcall"
)

const (
	defaultRequestTimeout = 600 * time.Second
	finishReasonStop      = "stop"
	requestIDPrefix       = "chatcmpl-"
)

// ErrMessagesRequired is returned for requests without messages.
var ErrMessagesRequired = apperr.Validation("messages field is required")

// Session is the engine session requests are served from.
type Session interface {
	Start(ctx context.Context) error
	Generate(ctx context.Context, req engine.GenerateRequest) (engine.Stream, error)
	Template() *chattemplate.Template
	Model() string
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	RequestTimeout     time.Duration
	ReportLengthFinish bool
	Formatter          *toolcall.Formatter
	Publisher          eventstream.Publisher
	Metrics            *metrics.Metrics
	Logger             *slog.Logger
}

// Service turns chat requests into completions.
type Service struct {
	session            Session
	timeout            time.Duration
	reportLengthFinish bool
	formatter          *toolcall.Formatter
	publisher          eventstream.Publisher
	metrics            *metrics.Metrics
	logger             *slog.Logger
}

// New constructs a Service backed by session.
func New(session Session, opts Options) (*Service, error) {
	if session == nil {
		return nil, errors.New("session must not be nil")
	}

	svc := &Service{
		session:            session,
		timeout:            opts.RequestTimeout,
		reportLengthFinish: opts.ReportLengthFinish,
		formatter:          opts.Formatter,
		publisher:          opts.Publisher,
		metrics:            opts.Metrics,
		logger:             opts.Logger,
	}
	if svc.timeout <= 0 {
		svc.timeout = defaultRequestTimeout
	}
	if svc.formatter == nil {
		svc.formatter = toolcall.NewFormatter(nil)
	}
	if svc.publisher == nil {
		svc.publisher = nop.NewPublisher()
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// Complete serves one chat request. Validation failures return before the
// engine session is touched. The request timeout covers everything from
// engine start through aggregation.
func (s *Service) Complete(ctx context.Context, req models.ChatRequest) (*models.Completion, error) {
	started := time.Now()

	completion, err := s.complete(ctx, req)
	took := time.Since(started)

	if err != nil {
		s.observe(apperr.KindOf(err).String(), took, models.Usage{})
		return nil, err
	}

	s.observe(metrics.OutcomeOK, took, completion.Usage)
	s.publishUsage(ctx, *completion, took, len(req.Tools) > 0)
	return completion, nil
}

func (s *Service) complete(ctx context.Context, req models.ChatRequest) (*models.Completion, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.session.Start(ctx); err != nil {
		return nil, classify(ctx, err)
	}

	tpl := s.session.Template()
	if tpl == nil {
		return nil, apperr.Initialization(engine.ErrNotReady)
	}
	builder, err := prompt.NewBuilder(tpl)
	if err != nil {
		return nil, apperr.Initialization(err)
	}
	text, err := builder.Build(req.Messages, req.Tools)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	params := sampling.Resolve(sampling.Options{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	})

	requestID := requestIDPrefix + uuid.NewString()
	s.logger.Debug("submitting prompt",
		"request_id", requestID,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"max_tokens", params.MaxTokens,
	)

	stream, err := s.session.Generate(ctx, engine.GenerateRequest{
		RequestID: requestID,
		Prompt:    text,
		Sampling:  params,
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	result, err := aggregate.Aggregate(ctx, stream)
	if err != nil {
		return nil, classify(ctx, err)
	}

	calls, err := s.formatter.Format(result, len(req.Tools) > 0)
	if err != nil {
		return nil, fmt.Errorf("format tool calls: %w", err)
	}

	finishReason := finishReasonStop
	if s.reportLengthFinish && result.FinishReason != "" {
		finishReason = result.FinishReason
	}

	return &models.Completion{
		ID:           requestID,
		Model:        s.session.Model(),
		Text:         result.Text,
		ToolCalls:    calls,
		Usage:        result.Usage(),
		FinishReason: finishReason,
	}, nil
}

// Validate rejects requests that must never reach the engine.
func Validate(req models.ChatRequest) error {
	if len(req.Messages) == 0 {
		return ErrMessagesRequired
	}
	for i, msg := range req.Messages {
		if !msg.Role.Valid() {
			return apperr.Validation(fmt.Sprintf("messages[%d].role %q is not supported", i, msg.Role))
		}
	}
	for i, tool := range req.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return apperr.Validation(fmt.Sprintf("tools[%d].function.name is required", i))
		}
	}
	return nil
}

// classify prefers the request context's own error so a deadline hit inside a
// transport still reports as a timeout.
func classify(ctx context.Context, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return apperr.Timeout(err)
	case errors.Is(ctxErr, context.Canceled):
		return apperr.Canceled(err)
	}
	return err
}

func (s *Service) observe(outcome string, took time.Duration, usage models.Usage) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRequest(outcome, took, usage.PromptTokens, usage.CompletionTokens)
}

func (s *Service) publishUsage(ctx context.Context, completion models.Completion, took time.Duration, toolsOffered bool) {
	event := eventstream.NewUsageEvent(completion, took, toolsOffered)
	if err := s.publisher.PublishUsage(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to publish usage event", "request_id", completion.ID, "error", err)
	}
}
