package retry

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindGeneric   Kind = "generic"
	KindRateLimit Kind = "rate_limit"
	KindTimeout   Kind = "timeout"
)

var (
	ErrGeneric   = errors.New("provider error")
	ErrRateLimit = errors.New("provider rate limited")
	ErrTimeout   = errors.New("provider timeout")
)

// Normalized error for any outbound provider call (completion provider, decision service, toxicity scorer).
type ProviderError struct {
	Kind     Kind
	Provider string
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", e.Provider, e.Kind, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Allows errors.Is(err, ErrRateLimit) and friends.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrRateLimit:
		return e.Kind == KindRateLimit
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrGeneric:
		return e.Kind == KindGeneric
	}
	return false
}

// Non-2xx HTTP response from a provider. The status code is part of the message so that "429" classification works on wrapped errors too.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}
