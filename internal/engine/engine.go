// Package engine defines the contract with the inference engine and owns the
// single engine session a serving container keeps for its whole lifetime.
package engine

import (
	"context"

	"modelgate/internal/sampling"
)

// Args is the fixed engine configuration chosen at deployment time. It is
// sent once, on load, and never changes per request.
type Args struct {
	Model                string  `json:"model"`
	Revision             string  `json:"revision"`
	Quantization         string  `json:"quantization,omitempty"`
	DType                string  `json:"dtype,omitempty"`
	MaxModelLen          int     `json:"max_model_len"`
	GPUMemoryUtilization float64 `json:"gpu_memory_utilization"`
	TensorParallelSize   int     `json:"tensor_parallel_size"`
	TrustRemoteCode      bool    `json:"trust_remote_code"`
	DownloadDir          string  `json:"download_dir,omitempty"`
}

// ModelInfo is what the engine reports once the weights are loaded.
type ModelInfo struct {
	Model       string `json:"model"`
	Revision    string `json:"revision"`
	MaxModelLen int    `json:"max_model_len"`
}

// GenerateRequest is one prompt submitted for generation.
type GenerateRequest struct {
	RequestID string          `json:"request_id"`
	Prompt    string          `json:"prompt"`
	Sampling  sampling.Params `json:"sampling"`
}

// Output is a cumulative partial output: every element carries the full text
// and token ids generated so far and supersedes the one before it.
type Output struct {
	Text               string `json:"text"`
	PromptTokenIDs     []int  `json:"prompt_token_ids"`
	CompletionTokenIDs []int  `json:"completion_token_ids"`
	Finished           bool   `json:"finished,omitempty"`
	FinishReason       string `json:"finish_reason,omitempty"`
}

// Stream yields cumulative outputs. Recv returns io.EOF once the engine has
// nothing more to send.
type Stream interface {
	Recv() (Output, error)
	Close() error
}

// Engine is an inference engine reachable through some transport.
// Concurrent Generate calls are the engine's own concurrency concern.
type Engine interface {
	Load(ctx context.Context, args Args) (ModelInfo, error)
	Generate(ctx context.Context, req GenerateRequest) (Stream, error)
	Close() error
}
