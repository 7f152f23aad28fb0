package extractor

import (
	"errors"
	"fmt"
)

// Kind classifies why an extraction failed.
type Kind string

const (
	// KindProviderUnavailable covers network, auth, rate limit and missing
	// credential failures reaching the inference provider.
	KindProviderUnavailable Kind = "provider_unavailable"

	// KindMalformedResponse means the provider answered but the reply could
	// not be parsed into payment fields.
	KindMalformedResponse Kind = "malformed_response"
)

// Sentinel errors matching each Kind through errors.Is.
var (
	ErrProviderUnavailable = errors.New("inference provider unavailable")
	ErrMalformedResponse   = errors.New("failed to parse response")
)

// ExtractionError is returned by Extract. RawContent holds the model reply
// for malformed responses.
type ExtractionError struct {
	Kind       Kind
	Err        error
	RawContent string
}

func (e *ExtractionError) Error() string {
	switch e.Kind {
	case KindMalformedResponse:
		return fmt.Sprintf("%s: %v", ErrMalformedResponse, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel for the error's Kind.
func (e *ExtractionError) Is(target error) bool {
	switch target {
	case ErrProviderUnavailable:
		return e.Kind == KindProviderUnavailable
	case ErrMalformedResponse:
		return e.Kind == KindMalformedResponse
	}
	return false
}
