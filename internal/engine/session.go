package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"modelgate/internal/apperr"
	"modelgate/internal/chattemplate"
)

const defaultInitTimeout = 10 * time.Minute

// ErrNotReady indicates the session has no loaded engine to serve from.
var ErrNotReady = errors.New("engine session is not ready")

// ErrModelMismatch indicates the engine loaded something other than what was
// requested.
var ErrModelMismatch = errors.New("engine loaded a different model")

// State is the lifecycle position of a Session.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// TemplateSource resolves the chat template for a model id.
type TemplateSource interface {
	Lookup(modelID string) (*chattemplate.Template, error)
}

// SessionConfig holds the fixed deployment-time settings of a Session.
type SessionConfig struct {
	Args        Args
	InitTimeout time.Duration
	Templates   TemplateSource

	// OnStateChange is called once, when the session leaves the
	// uninitialized state, before any waiter in Start is released.
	OnStateChange func(state State, took time.Duration)
}

// Session owns the one engine a process serves from. It loads the engine at
// most once; READY and FAILED are both terminal.
type Session struct {
	engine Engine
	cfg    SessionConfig
	logger *slog.Logger

	once  sync.Once
	done  chan struct{}
	state atomic.Int32

	// Written by the load goroutine before done is closed.
	err      error
	info     ModelInfo
	template *chattemplate.Template
}

// NewSession wraps eng. Nothing is loaded until Start or Generate is called.
func NewSession(eng Engine, cfg SessionConfig, logger *slog.Logger) (*Session, error) {
	if eng == nil {
		return nil, errors.New("engine must not be nil")
	}
	if cfg.Templates == nil {
		return nil, errors.New("template source must not be nil")
	}
	if cfg.Args.Model == "" {
		return nil, errors.New("engine args must name a model")
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = defaultInitTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		engine: eng,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Start triggers the load on first call and waits until the session is ready,
// has failed, or ctx ends. Abandoning the wait does not abort the load.
func (s *Session) Start(ctx context.Context) error {
	s.once.Do(func() {
		go s.load()
	})

	select {
	case <-s.done:
		if s.err != nil {
			return apperr.Initialization(s.err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Generate submits a prompt to the loaded engine, starting it if needed.
func (s *Session) Generate(ctx context.Context, req GenerateRequest) (Stream, error) {
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s.engine.Generate(ctx, req)
}

// State reports the current lifecycle state without blocking.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Template returns the chat template of the loaded model, or nil before the
// session is ready.
func (s *Session) Template() *chattemplate.Template {
	if s.State() != StateReady {
		return nil
	}
	return s.template
}

// Info returns what the engine reported on load.
func (s *Session) Info() ModelInfo {
	if s.State() != StateReady {
		return ModelInfo{}
	}
	return s.info
}

// Model is the configured model id.
func (s *Session) Model() string {
	return s.cfg.Args.Model
}

// Close releases the engine connection.
func (s *Session) Close() error {
	return s.engine.Close()
}

func (s *Session) load() {
	started := time.Now()
	args := s.cfg.Args
	s.logger.Info("loading inference engine",
		"model", args.Model,
		"revision", args.Revision,
		"quantization", args.Quantization,
		"max_model_len", args.MaxModelLen,
	)

	info, tpl, err := s.initialize(args)
	took := time.Since(started)

	state := StateReady
	if err != nil {
		s.err = err
		state = StateFailed
		s.logger.Error("inference engine failed to load", "model", args.Model, "duration", took, "error", err)
	} else {
		s.info = info
		s.template = tpl
		s.logger.Info("inference engine ready", "model", info.Model, "template", tpl.Name(), "duration", took)
	}

	s.state.Store(int32(state))
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(state, took)
	}
	close(s.done)
}

func (s *Session) initialize(args Args) (ModelInfo, *chattemplate.Template, error) {
	tpl, err := s.cfg.Templates.Lookup(args.Model)
	if err != nil {
		return ModelInfo{}, nil, fmt.Errorf("resolve chat template: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.InitTimeout)
	defer cancel()

	info, err := s.engine.Load(ctx, args)
	if err != nil {
		return ModelInfo{}, nil, fmt.Errorf("load engine: %w", err)
	}

	if info.Model != "" && info.Model != args.Model {
		return ModelInfo{}, nil, fmt.Errorf("%w: requested %s, got %s", ErrModelMismatch, args.Model, info.Model)
	}
	if args.Revision != "" && info.Revision != "" && info.Revision != args.Revision {
		return ModelInfo{}, nil, fmt.Errorf("%w: requested revision %s, got %s", ErrModelMismatch, args.Revision, info.Revision)
	}
	if info.Model == "" {
		info.Model = args.Model
	}

	return info, tpl, nil
}
