package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes through", nil, nil},
		{"context deadline becomes timeout", context.DeadlineExceeded, ErrGatewayTimeout},
		{"wrapped deadline becomes timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrGatewayTimeout},
		{"net timeout becomes timeout", timeoutErr{}, ErrGatewayTimeout},
		{"open circuit becomes unavailable", ErrCircuitOpen, ErrGatewayUnavailable},
		{"arbitrary error becomes unavailable", errors.New("connection refused"), ErrGatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTransportError(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyTransportError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("openai: %w", ErrGatewayTimeout)) {
		t.Error("wrapped gateway timeout should be retryable")
	}
	if !IsRetryable(ErrGatewayUnavailable) {
		t.Error("gateway unavailable should be retryable")
	}
	if IsRetryable(errors.New("parse failure")) {
		t.Error("arbitrary errors must not be retryable")
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig("test", CircuitBreakerConfig{
		MaxFailures:          2,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})

	fail := func() (interface{}, error) { return nil, errors.New("boom") }

	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(context.Background(), fail); err == nil {
			t.Fatal("expected failure to propagate")
		}
	}

	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		t.Fatal("function must not run when circuit is open")
		return nil, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if cb.State() != "open" {
		t.Errorf("expected state open, got %s", cb.State())
	}
}

func TestCircuitBreakerCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) {
		t.Fatal("function must not run with a cancelled context")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
