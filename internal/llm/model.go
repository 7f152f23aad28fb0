package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the provider answers with no text at all.
var ErrEmptyResponse = errors.New("empty response from model")

// Model sends a single prompt (optionally with an image) to an inference
// provider and returns the text of the first completion.
// This interface enables mocking the provider in tests.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a single-turn generation request.
type Request struct {
	// Model overrides the default model name when non-empty.
	Model string

	Prompt string

	// Image is attached after the prompt when set.
	Image *Image

	MaxOutputTokens int32
	Temperature     *float32

	// JSON asks the provider for an application/json response.
	JSON bool
}

// Image is raw image bytes plus their MIME type.
type Image struct {
	MIMEType string
	Data     []byte
}
