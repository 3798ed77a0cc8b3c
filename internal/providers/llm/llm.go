package llm

import (
	"context"
	"errors"
)

// Request is a single prompt/completion exchange.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

type Provider interface {
	// Complete returns the full text of the model answer.
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Close() error
}

var ErrEmptyResponse = errors.New("model returned empty response")
