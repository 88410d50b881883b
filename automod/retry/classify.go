package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

func isRateLimit(err error) bool {
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Reports whether a failed attempt should be retried. Cancellation of the parent context is never retried.
func IsRetryable(parent context.Context, err error) bool {
	if err == nil || parent.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if isTimeout(err) || isRateLimit(err) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return false
}

func classify(err error) Kind {
	switch {
	case isRateLimit(err):
		return KindRateLimit
	case isTimeout(err):
		return KindTimeout
	default:
		return KindGeneric
	}
}
