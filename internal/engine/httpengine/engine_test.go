package httpengine_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelgate/internal/engine"
	"modelgate/internal/engine/httpengine"
	"modelgate/internal/sampling"
	"modelgate/internal/sse"
)

var _ = Describe("Engine", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		eng     *httpengine.Engine
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))

		var err error
		eng, err = httpengine.New(server.URL, server.Client())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(eng.Close()).To(Succeed())
		server.Close()
	})

	It("requires an address and a client", func() {
		_, err := httpengine.New("", http.DefaultClient)
		Expect(err).To(HaveOccurred())
		_, err = httpengine.New("localhost:8100", nil)
		Expect(err).To(HaveOccurred())
	})

	Describe("Load", func() {
		It("posts the engine args and decodes the model info", func() {
			var got engine.Args
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/v1/engine/load"))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
				_, _ = io.WriteString(w, `{"model":"Qwen/Qwen2.5-32B-Instruct-AWQ","revision":"main","max_model_len":4096}`)
			}

			info, err := eng.Load(context.Background(), engine.Args{
				Model:                "Qwen/Qwen2.5-32B-Instruct-AWQ",
				Revision:             "main",
				Quantization:         "awq",
				MaxModelLen:          4096,
				GPUMemoryUtilization: 0.9,
				TensorParallelSize:   1,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(info).To(Equal(engine.ModelInfo{Model: "Qwen/Qwen2.5-32B-Instruct-AWQ", Revision: "main", MaxModelLen: 4096}))
			Expect(got.Quantization).To(Equal("awq"))
			Expect(got.GPUMemoryUtilization).To(Equal(0.9))
		})

		It("reports a structured engine error", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"error":{"message":"CUDA out of memory","type":"load_error"}}`)
			}

			_, err := eng.Load(context.Background(), engine.Args{Model: "m"})
			Expect(err).To(MatchError(ContainSubstring("CUDA out of memory")))
			Expect(err).To(MatchError(ContainSubstring("load_error")))
		})

		It("reports a plain engine error body", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, "upstream gone\n")
			}

			_, err := eng.Load(context.Background(), engine.Args{Model: "m"})
			Expect(err).To(MatchError("engine error status 502: upstream gone"))
		})
	})

	Describe("Generate", func() {
		It("streams cumulative outputs until the done sentinel", func() {
			var got engine.GenerateRequest
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/v1/engine/generate"))
				Expect(r.Header.Get("Accept")).To(Equal("text/event-stream"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())

				w.Header().Set("Content-Type", "text/event-stream")
				Expect(sse.Write(w, "", engine.Output{Text: "he", PromptTokenIDs: []int{1, 2}, CompletionTokenIDs: []int{5}})).To(Succeed())
				_, _ = io.WriteString(w, ": keep-alive\n\n")
				Expect(sse.Write(w, "", engine.Output{Text: "hello", PromptTokenIDs: []int{1, 2}, CompletionTokenIDs: []int{5, 6}, Finished: true, FinishReason: "stop"})).To(Succeed())
				_, _ = io.WriteString(w, "data: [DONE]\n\n")
			}

			maxTokens := 16
			stream, err := eng.Generate(context.Background(), engine.GenerateRequest{
				RequestID: "req-1",
				Prompt:    "<|im_start|>user\nhi<|im_end|>\n",
				Sampling:  sampling.Resolve(sampling.Options{MaxTokens: &maxTokens}),
			})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			first, err := stream.Recv()
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Text).To(Equal("he"))

			second, err := stream.Recv()
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Text).To(Equal("hello"))
			Expect(second.CompletionTokenIDs).To(Equal([]int{5, 6}))
			Expect(second.FinishReason).To(Equal("stop"))

			_, err = stream.Recv()
			Expect(err).To(Equal(io.EOF))
			_, err = stream.Recv()
			Expect(err).To(Equal(io.EOF))

			Expect(got.RequestID).To(Equal("req-1"))
			Expect(got.Sampling.MaxTokens).To(Equal(16))
		})

		It("ends cleanly when the body closes without a sentinel", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_ = sse.Write(w, "", engine.Output{Text: "hi"})
			}

			stream, err := eng.Generate(context.Background(), engine.GenerateRequest{Prompt: "p"})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			out, err := stream.Recv()
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("hi"))
			_, err = stream.Recv()
			Expect(err).To(Equal(io.EOF))
		})

		It("turns an error event into an error", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_ = sse.Write(w, "error", map[string]string{"message": "prompt too long", "type": "invalid_request"})
			}

			stream, err := eng.Generate(context.Background(), engine.GenerateRequest{Prompt: "p"})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			_, err = stream.Recv()
			Expect(err).To(MatchError("engine stream error (invalid_request): prompt too long"))
		})

		It("rejects malformed output", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "data: {not json\n\n")
			}

			stream, err := eng.Generate(context.Background(), engine.GenerateRequest{Prompt: "p"})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			_, err = stream.Recv()
			Expect(err).To(MatchError(ContainSubstring("decode engine output")))
		})

		It("fails before streaming on an error status", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, `{"error":{"message":"not loaded","type":"state_error"}}`)
			}

			_, err := eng.Generate(context.Background(), engine.GenerateRequest{Prompt: "p"})
			Expect(err).To(MatchError(ContainSubstring("not loaded")))
		})
	})

	It("accepts a bare host and port", func() {
		address := strings.TrimPrefix(server.URL, "http://")
		bare, err := httpengine.New(address, server.Client())
		Expect(err).NotTo(HaveOccurred())

		handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"model":"m","revision":"r"}`)
		}
		info, err := bare.Load(context.Background(), engine.Args{Model: "m"})
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Model).To(Equal("m"))
	})
})
