package factory

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"modelgate/internal/config"
	"modelgate/internal/engine"
	"modelgate/internal/engine/grpcengine"
	"modelgate/internal/engine/httpengine"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// NewEngine constructs the engine client for the configured transport.
func NewEngine(cfg config.EngineConfig) (engine.Engine, error) {
	switch cfg.Transport {
	case config.TransportGRPC:
		eng, err := grpcengine.New(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("initialise grpc engine: %w", err)
		}
		return eng, nil
	case config.TransportHTTP, "":
		eng, err := httpengine.New(cfg.Address, newHTTPClient())
		if err != nil {
			return nil, fmt.Errorf("initialise http engine: %w", err)
		}
		return eng, nil
	default:
		return nil, fmt.Errorf("unsupported engine transport %q", cfg.Transport)
	}
}

// Args maps the model section of the configuration onto engine load args.
func Args(cfg config.ModelConfig) engine.Args {
	return engine.Args{
		Model:                cfg.Name,
		Revision:             cfg.Revision,
		Quantization:         cfg.Quantization,
		DType:                cfg.DType,
		MaxModelLen:          cfg.MaxModelLen,
		GPUMemoryUtilization: cfg.GPUMemoryUtilization,
		TensorParallelSize:   cfg.TensorParallelSize,
		TrustRemoteCode:      cfg.TrustRemoteCode,
		DownloadDir:          cfg.DownloadDir,
	}
}

// newHTTPClient has no overall timeout: generation streams are bounded by the
// request context, and load is bounded by the session init timeout.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
	}
}
