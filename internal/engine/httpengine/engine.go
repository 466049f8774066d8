// Package httpengine talks to an inference engine over HTTP. Generation
// results arrive as a server-sent event stream of cumulative outputs.
package httpengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"modelgate/internal/engine"
	"modelgate/internal/sse"
)

const (
	contentTypeJSON = "application/json"
	contentTypeSSE  = "text/event-stream"
	userAgent       = "modelgate/0.1"

	doneSentinel = "[DONE]"
	errorEvent   = "error"
)

// Engine is an engine.Engine reached over HTTP.
type Engine struct {
	client      *http.Client
	baseURL     string
	loadURL     string
	generateURL string
}

// New creates an HTTP engine client for the engine listening at address.
func New(address string, client *http.Client) (*Engine, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(address, "/")
	if baseURL == "" {
		return nil, errors.New("engine address must not be empty")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &Engine{
		client:      client,
		baseURL:     baseURL,
		loadURL:     baseURL + "/v1/engine/load",
		generateURL: baseURL + "/v1/engine/generate",
	}, nil
}

// Load asks the engine to load the model described by args.
func (e *Engine) Load(ctx context.Context, args engine.Args) (engine.ModelInfo, error) {
	httpReq, err := e.newRequest(ctx, e.loadURL, contentTypeJSON, args)
	if err != nil {
		return engine.ModelInfo{}, err
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return engine.ModelInfo{}, fmt.Errorf("engine load request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return engine.ModelInfo{}, parseAPIError(httpResp)
	}

	var info engine.ModelInfo
	if err := decodeJSON(httpResp.Body, &info); err != nil {
		return engine.ModelInfo{}, err
	}
	return info, nil
}

// Generate submits a prompt and returns the stream of cumulative outputs. The
// stream is bound to ctx; cancelling it closes the connection to the engine.
func (e *Engine) Generate(ctx context.Context, req engine.GenerateRequest) (engine.Stream, error) {
	httpReq, err := e.newRequest(ctx, e.generateURL, contentTypeSSE, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine generate request failed: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()
		return nil, parseAPIError(httpResp)
	}

	return &stream{
		body:   httpResp.Body,
		reader: sse.NewReader(httpResp.Body),
	}, nil
}

// Close releases idle connections held by the client.
func (e *Engine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *Engine) newRequest(ctx context.Context, url, accept string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	return req, nil
}

type stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	done   bool
}

func (s *stream) Recv() (engine.Output, error) {
	if s.done {
		return engine.Output{}, io.EOF
	}

	for {
		ev, err := s.reader.Next()
		if err != nil {
			return engine.Output{}, fmt.Errorf("read engine stream: %w", err)
		}
		if ev == nil {
			s.done = true
			return engine.Output{}, io.EOF
		}

		data := strings.TrimSpace(ev.Data)
		if data == doneSentinel {
			s.done = true
			return engine.Output{}, io.EOF
		}
		if ev.Type == errorEvent {
			s.done = true
			return engine.Output{}, decodeStreamError(data)
		}
		if data == "" {
			continue
		}

		var out engine.Output
		if err := json.Unmarshal([]byte(data), &out); err != nil {
			return engine.Output{}, fmt.Errorf("decode engine output: %w", err)
		}
		return out, nil
	}
}

func (s *stream) Close() error {
	return s.body.Close()
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("engine error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("engine error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("engine error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func decodeStreamError(data string) error {
	var obj apiErrorObject
	if err := json.Unmarshal([]byte(data), &obj); err == nil && obj.Message != "" {
		return fmt.Errorf("engine stream error (%s): %s", obj.Type, obj.Message)
	}
	return fmt.Errorf("engine stream error: %s", data)
}

func decodeJSON(reader io.Reader, target any) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}
