package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteCallsOperationOnce(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errTemp
	}, nil)
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, nil)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("expected IsCircuitOpen to recognise %v", err)
	}

	other := exec.Execute(context.Background(), "other", func(context.Context) error { return nil }, nil)
	if other != nil {
		t.Fatalf("expected independent breaker per upstream, got %v", other)
	}
}

func TestExecuteIgnoresUnrecordedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     0.1,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})
	errNotFound := errors.New("404")
	classifier := func(error) ErrorClassification { return ErrorClassification{RecordFailure: false} }

	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "propublica.search", func(context.Context) error {
			return errNotFound
		}, classifier)
		if !errors.Is(err, errNotFound) {
			t.Fatalf("expected passthrough error on iteration %d, got %v", i, err)
		}
	}
}

func TestExecuteShortCircuitsCancelledContext(t *testing.T) {
	exec := NewExecutor(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.Execute(ctx, "op", func(context.Context) error {
		t.Fatalf("operation must not run with a cancelled context")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteSharesBreakerAcrossCallsToOneUpstream(t *testing.T) {
	var changes []string
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
		OnStateChange: func(upstream, state string) {
			changes = append(changes, upstream+"="+state)
		},
	})

	errDown := errors.New("503")
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "anthropic.qualify", func(context.Context) error { return errDown }, nil)
	}

	err := exec.Execute(context.Background(), "anthropic.batch_classify", func(context.Context) error {
		t.Fatalf("batch call must be short-circuited by the shared breaker")
		return nil
	}, nil)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if !strings.Contains(err.Error(), "anthropic.batch_classify") {
		t.Fatalf("expected operation name in error, got %v", err)
	}

	states := exec.States()
	if len(states) != 1 || states[0].Upstream != "anthropic" || states[0].State != "open" {
		t.Fatalf("unexpected breaker states %+v", states)
	}
	if len(changes) != 1 || changes[0] != "anthropic=open" {
		t.Fatalf("unexpected state change callbacks %v", changes)
	}
}

func TestUpstreamOf(t *testing.T) {
	cases := map[string]string{
		"anthropic.qualify": "anthropic",
		"nats.publish":      "nats",
		"plain":             "plain",
		"  ":                "unknown",
		".odd":              ".odd",
	}
	for in, want := range cases {
		if got := upstreamOf(in); got != want {
			t.Fatalf("upstreamOf(%q) = %q, want %q", in, got, want)
		}
	}
}
