// Package sampling resolves user supplied generation knobs into the complete
// parameter set sent to the inference engine.
package sampling

const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// Options carries the optional fields a caller may set. Nil means unset.
type Options struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	Stop        []string
}

// Params is the engine-ready sampling parameter set. Values are not clamped;
// range checking is left to the engine.
type Params struct {
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Resolve applies defaults to every unset field. The returned Params does not
// share memory with opts.
func Resolve(opts Options) Params {
	params := Params{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		Stop:        []string{},
	}

	if opts.MaxTokens != nil {
		params.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		params.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		params.TopP = *opts.TopP
	}
	if len(opts.Stop) > 0 {
		params.Stop = append(params.Stop, opts.Stop...)
	}

	return params
}
