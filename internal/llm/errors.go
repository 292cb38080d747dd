package llm

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrGatewayTimeout indicates a gateway call exceeded its deadline.
	// Callers may retry once with backoff, then degrade gracefully.
	ErrGatewayTimeout = errors.New("gateway timeout")

	// ErrGatewayUnavailable indicates the gateway rejected or could not
	// service the call (connection refused, non-2xx status, open circuit).
	// Same retry policy as ErrGatewayTimeout.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// IsRetryable reports whether the error is a transient gateway failure the
// caller may retry once before proceeding without the call's result.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) || errors.Is(err, ErrGatewayUnavailable)
}

// classifyTransportError maps a raw transport or circuit error onto the
// gateway error taxonomy. Deadline expiry (from the context or the HTTP
// client) becomes ErrGatewayTimeout; everything else, including an open
// circuit breaker, becomes ErrGatewayUnavailable.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrGatewayTimeout
	}
	return ErrGatewayUnavailable
}
