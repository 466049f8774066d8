// Package grpcengine talks to an inference engine over gRPC. Load is unary and
// Generate is server streaming; messages use the JSON codec.
package grpcengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"modelgate/internal/engine"
)

// Engine is an engine.Engine reached over gRPC.
type Engine struct {
	conn *grpc.ClientConn
}

// New dials address lazily. Extra options are applied after the defaults, so
// callers may replace the transport credentials or the dialer.
func New(address string, opts ...grpc.DialOption) (*Engine, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("engine address must not be empty")
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create engine client: %w", err)
	}
	return &Engine{conn: conn}, nil
}

// Load asks the engine to load the model described by args.
func (e *Engine) Load(ctx context.Context, args engine.Args) (engine.ModelInfo, error) {
	var info engine.ModelInfo
	if err := e.conn.Invoke(ctx, loadMethod, &args, &info); err != nil {
		return engine.ModelInfo{}, fmt.Errorf("engine load rpc: %w", err)
	}
	return info, nil
}

// Generate opens a server stream for one prompt.
func (e *Engine) Generate(ctx context.Context, req engine.GenerateRequest) (engine.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	cs, err := e.conn.NewStream(ctx, &generateStreamDesc, generateMethod)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open engine generate stream: %w", err)
	}
	if err := cs.SendMsg(&req); err != nil {
		cancel()
		return nil, fmt.Errorf("send generate request: %w", err)
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, fmt.Errorf("close generate send side: %w", err)
	}

	return &stream{cs: cs, cancel: cancel}, nil
}

// Close tears down the client connection.
func (e *Engine) Close() error {
	return e.conn.Close()
}

type stream struct {
	cs     grpc.ClientStream
	cancel context.CancelFunc
}

// Recv returns io.EOF unwrapped when the server finishes the stream.
func (s *stream) Recv() (engine.Output, error) {
	var out engine.Output
	if err := s.cs.RecvMsg(&out); err != nil {
		return engine.Output{}, err
	}
	return out, nil
}

func (s *stream) Close() error {
	s.cancel()
	return nil
}
