package engine_test

import (
	"context"
	"io"
	"sync/atomic"

	"modelgate/internal/engine"
)

type stubEngine struct {
	info    engine.ModelInfo
	loadErr error
	release chan struct{}

	loadCalls     atomic.Int32
	generateCalls atomic.Int32
	closed        atomic.Bool
}

func (s *stubEngine) Load(ctx context.Context, args engine.Args) (engine.ModelInfo, error) {
	s.loadCalls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return engine.ModelInfo{}, ctx.Err()
		}
	}
	if s.loadErr != nil {
		return engine.ModelInfo{}, s.loadErr
	}
	if s.info.Model == "" {
		return engine.ModelInfo{Model: args.Model, Revision: args.Revision, MaxModelLen: args.MaxModelLen}, nil
	}
	return s.info, nil
}

func (s *stubEngine) Generate(context.Context, engine.GenerateRequest) (engine.Stream, error) {
	s.generateCalls.Add(1)
	return &emptyStream{}, nil
}

func (s *stubEngine) Close() error {
	s.closed.Store(true)
	return nil
}

type emptyStream struct{}

func (emptyStream) Recv() (engine.Output, error) { return engine.Output{}, io.EOF }
func (emptyStream) Close() error                 { return nil }
