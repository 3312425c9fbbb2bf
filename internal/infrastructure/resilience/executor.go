package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the breaker whether a failure counts against the upstream.
type ErrorClassification struct {
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor guards calls to external services. Operations are named
// "<upstream>.<call>" and every call to one upstream shares a breaker, so a
// dead LLM endpoint trips qualification and batch screening together.
// Each call is attempted once.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.cfg.BreakerEnabled {
		return fn(ctx)
	}

	upstream := upstreamOf(operation)
	breaker := e.breaker(upstream)
	_, err := breaker.Execute(func() (any, error) {
		callErr := fn(ctx)
		if callErr != nil && !classifier(callErr).RecordFailure {
			return nil, ignoredError{err: callErr}
		}
		return nil, callErr
	})

	var ignored ignoredError
	if errors.As(err, &ignored) {
		return ignored.err
	}
	if IsCircuitOpen(err) {
		return fmt.Errorf("%s: %w", strings.TrimSpace(operation), err)
	}
	return err
}

// States reports the current breaker state per upstream, sorted by name.
func (e *Executor) States() []BreakerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]BreakerState, 0, len(e.breakers))
	for name, breaker := range e.breakers {
		out = append(out, BreakerState{Upstream: name, State: breaker.State().String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Upstream < out[j].Upstream })
	return out
}

type BreakerState struct {
	Upstream string `json:"upstream"`
	State    string `json:"state"`
}

func (e *Executor) breaker(upstream string) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[upstream]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        upstream,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			var ignored ignoredError
			return err == nil || errors.As(err, &ignored)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "upstream", name, "from", from.String(), "to", to.String())
			if e.cfg.OnStateChange != nil {
				e.cfg.OnStateChange(name, to.String())
			}
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[upstream] = breaker
	return breaker
}

// ignoredError carries failures the classifier excluded from breaker counts.
type ignoredError struct {
	err error
}

func (e ignoredError) Error() string { return e.err.Error() }
func (e ignoredError) Unwrap() error { return e.err }

func upstreamOf(operation string) string {
	op := strings.TrimSpace(operation)
	if op == "" {
		return "unknown"
	}
	if head, _, ok := strings.Cut(op, "."); ok && head != "" {
		return head
	}
	return op
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsContextError reports caller-side cancellation, which never counts against an upstream.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func defaultClassifier(err error) ErrorClassification {
	return ErrorClassification{RecordFailure: !IsContextError(err)}
}
