package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"

	LogFormatPretty = "pretty"
	LogFormatJSON   = "json"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Engine     EngineConfig     `yaml:"engine"`
	Templates  TemplatesConfig  `yaml:"templates"`
	Completion CompletionConfig `yaml:"completion"`
	Events     EventsConfig     `yaml:"events"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// ModelConfig is the deployment-time engine configuration. It is sent to the
// engine once, on load.
type ModelConfig struct {
	Name                 string  `yaml:"name"`
	Revision             string  `yaml:"revision"`
	Quantization         string  `yaml:"quantization"`
	DType                string  `yaml:"dtype"`
	MaxModelLen          int     `yaml:"max_model_len"`
	GPUMemoryUtilization float64 `yaml:"gpu_memory_utilization"`
	TensorParallelSize   int     `yaml:"tensor_parallel_size"`
	TrustRemoteCode      bool    `yaml:"trust_remote_code"`
	DownloadDir          string  `yaml:"download_dir"`
}

// EngineConfig says how to reach the inference engine.
type EngineConfig struct {
	Transport   string        `yaml:"transport"`
	Address     string        `yaml:"address"`
	InitTimeout time.Duration `yaml:"init_timeout"`
	Eager       bool          `yaml:"eager"`
}

// TemplatesConfig points at an optional chat template catalog that is
// searched before the built-in one.
type TemplatesConfig struct {
	Catalog string `yaml:"catalog"`
}

// CompletionConfig tunes the response envelope.
type CompletionConfig struct {
	ReportLengthFinish bool `yaml:"report_length_finish"`
}

// EventsConfig configures usage event publishing. Publishing is disabled
// when no brokers are listed.
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig lists the brokers and topic for usage events.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8000,
			RequestTimeout: 600 * time.Second,
			MaxBodyBytes:   1 << 20,
			ShutdownGrace:  10 * time.Second,
		},
		Model: ModelConfig{
			Name:                 "Qwen/Qwen2.5-32B-Instruct-AWQ",
			Revision:             "main",
			Quantization:         "awq",
			DType:                "half",
			MaxModelLen:          4096,
			GPUMemoryUtilization: 0.9,
			TensorParallelSize:   1,
			TrustRemoteCode:      true,
			DownloadDir:          "/cache/models",
		},
		Engine: EngineConfig{
			Transport:   TransportHTTP,
			Address:     "http://127.0.0.1:8100",
			InitTimeout: 10 * time.Minute,
			Eager:       true,
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Topic: "modelgate.usage",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatPretty,
		},
	}
}

// Load reads YAML configuration from disk on top of Default and validates the
// result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	if strings.TrimSpace(c.Model.Name) == "" {
		return fmt.Errorf("model.name must be provided")
	}
	if c.Model.MaxModelLen <= 0 {
		return fmt.Errorf("model.max_model_len must be positive, got %d", c.Model.MaxModelLen)
	}
	if c.Model.GPUMemoryUtilization <= 0 || c.Model.GPUMemoryUtilization > 1 {
		return fmt.Errorf("model.gpu_memory_utilization must be in (0, 1], got %g", c.Model.GPUMemoryUtilization)
	}
	if c.Model.TensorParallelSize <= 0 {
		return fmt.Errorf("model.tensor_parallel_size must be positive, got %d", c.Model.TensorParallelSize)
	}

	switch c.Engine.Transport {
	case TransportHTTP, TransportGRPC:
	default:
		return fmt.Errorf("engine.transport %q must be one of %q or %q", c.Engine.Transport, TransportHTTP, TransportGRPC)
	}
	if strings.TrimSpace(c.Engine.Address) == "" {
		return fmt.Errorf("engine.address must be provided")
	}
	if c.Engine.InitTimeout <= 0 {
		return fmt.Errorf("engine.init_timeout must be positive, got %s", c.Engine.InitTimeout)
	}

	for _, broker := range c.Events.Kafka.Brokers {
		if strings.TrimSpace(broker) == "" {
			return fmt.Errorf("events.kafka.brokers must not contain empty entries")
		}
	}
	if len(c.Events.Kafka.Brokers) > 0 && strings.TrimSpace(c.Events.Kafka.Topic) == "" {
		return fmt.Errorf("events.kafka.topic must be provided when brokers are configured")
	}

	switch c.Log.Format {
	case LogFormatPretty, LogFormatJSON:
	default:
		return fmt.Errorf("log.format %q must be one of %q or %q", c.Log.Format, LogFormatPretty, LogFormatJSON)
	}

	return nil
}
