package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"modelgate/internal/chattemplate"
	"modelgate/internal/config"
	"modelgate/internal/engine"
	enginefactory "modelgate/internal/engine/factory"
	"modelgate/internal/eventstream"
	"modelgate/internal/eventstream/kafka"
	"modelgate/internal/eventstream/nop"
	"modelgate/internal/gateway"
	"modelgate/internal/logger"
	"modelgate/internal/metrics"
	"modelgate/internal/toolcall"
)

// app holds everything a command needs to run the chat pipeline.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	session   *engine.Session
	gateway   *gateway.Service
	publisher eventstream.Publisher
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	// BindPFlag only fails on a nil flag.
	_ = v.BindPFlag(key, flag)
}

// loadConfig resolves configuration: flags > environment > file > defaults.
func loadConfig(flags *globalFlags, v *viper.Viper) (config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		var err error
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := config.ApplyOverrides(cfg, v)
	if err != nil {
		return config.Config{}, err
	}
	if flags.debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logger.New(
		logger.WithLevel(level),
		logger.WithJSON(cfg.Format == config.LogFormatJSON),
		logger.WithWriter(os.Stderr),
	), nil
}

func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	templates, err := loadTemplates(cfg.Templates)
	if err != nil {
		return nil, err
	}

	eng, err := enginefactory.NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	m.SetSessionState(engine.StateUninitialized.String(), knownStates()...)

	session, err := engine.NewSession(eng, engine.SessionConfig{
		Args:        enginefactory.Args(cfg.Model),
		InitTimeout: cfg.Engine.InitTimeout,
		Templates:   templates,
		OnStateChange: func(state engine.State, took time.Duration) {
			m.SetSessionState(state.String(), knownStates()...)
			if state == engine.StateReady {
				m.ObserveEngineInit(took)
			}
		},
	}, log.With("component", "engine"))
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	publisher, err := newPublisher(cfg.Events, log)
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	svc, err := gateway.New(session, gateway.Options{
		RequestTimeout:     cfg.Server.RequestTimeout,
		ReportLengthFinish: cfg.Completion.ReportLengthFinish,
		Formatter:          toolcall.NewFormatter(toolcall.NoopParser{}),
		Publisher:          publisher,
		Metrics:            m,
		Logger:             log.With("component", "gateway"),
	})
	if err != nil {
		_ = session.Close()
		_ = publisher.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		session:   session,
		gateway:   svc,
		publisher: publisher,
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.publisher.Close(), a.session.Close())
}

func loadTemplates(cfg config.TemplatesConfig) (*chattemplate.Catalog, error) {
	builtin, err := chattemplate.Builtin()
	if err != nil {
		return nil, err
	}
	if cfg.Catalog == "" {
		return builtin, nil
	}

	override, err := chattemplate.Load(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	return builtin.Merge(override), nil
}

func newPublisher(cfg config.EventsConfig, log *slog.Logger) (eventstream.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	}, log.With("component", "events"))
	if err != nil {
		return nil, fmt.Errorf("initialise kafka publisher: %w", err)
	}
	return publisher, nil
}

func knownStates() []string {
	return []string{
		engine.StateUninitialized.String(),
		engine.StateReady.String(),
		engine.StateFailed.String(),
	}
}
