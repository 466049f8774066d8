// Package aggregate reduces a stream of cumulative engine outputs to one
// generation result.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"modelgate/internal/apperr"
	"modelgate/internal/engine"
	"modelgate/internal/models"
)

// ErrEmptyStream indicates the engine closed the stream without sending
// any output.
var ErrEmptyStream = errors.New("engine stream ended without output")

// Aggregate drains stream and returns its last output. Every output supersedes
// the previous one, so earlier outputs are dropped rather than concatenated.
// Consumption stops as soon as ctx is done. The stream is closed on return.
func Aggregate(ctx context.Context, stream engine.Stream) (models.GenerationResult, error) {
	defer stream.Close()

	var (
		last engine.Output
		seen bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return models.GenerationResult{}, contextError(err)
		}

		out, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.GenerationResult{}, contextError(ctxErr)
			}
			return models.GenerationResult{}, fmt.Errorf("receive engine output: %w", err)
		}

		last = out
		seen = true
	}

	if !seen {
		return models.GenerationResult{}, apperr.Aggregation(ErrEmptyStream)
	}

	return models.GenerationResult{
		Text:               last.Text,
		PromptTokenIDs:     last.PromptTokenIDs,
		CompletionTokenIDs: last.CompletionTokenIDs,
		FinishReason:       last.FinishReason,
	}, nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(err)
	}
	return apperr.Canceled(err)
}
