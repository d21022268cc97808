package generation

import (
	"context"
	"errors"
	"time"

	"restaurant-receptionist/internal/common/metrics"
)

var (
	ErrTimeout     = errors.New("LLM_TIMEOUT")
	ErrQuota       = errors.New("LLM_QUOTA_EXCEEDED")
	ErrMalformed   = errors.New("LLM_MALFORMED_RESPONSE")
	ErrUnavailable = errors.New("LLM_UNAVAILABLE")
)

// Client is a text generation backend.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Request struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
	// Timeout bounds the whole call when run through Invoke. Zero means the
	// caller's context alone bounds it.
	Timeout time.Duration
}

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeQuota     Outcome = "quota"
	OutcomeMalformed Outcome = "malformed"
	OutcomeError     Outcome = "error"
)

type Result struct {
	Text    string
	Outcome Outcome
	Err     error
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Invoke runs one Complete call in its own goroutine and waits for it, the
// request timeout or ctx, whichever comes first. A client that ignores
// cancellation still yields OutcomeTimeout at the deadline; its late result
// is dropped.
func Invoke(ctx context.Context, client Client, caller string, req Request) Result {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	done := make(chan Result, 1)
	go func() {
		text, err := client.Complete(ctx, req)
		done <- Result{Text: text, Err: err}
	}()

	var res Result
	select {
	case res = <-done:
		res.Outcome = classify(res.Err)
		if res.Outcome == OutcomeSuccess && ctx.Err() != nil {
			res = Result{Outcome: OutcomeTimeout, Err: ErrTimeout}
		}
	case <-ctx.Done():
		res = Result{Outcome: OutcomeTimeout, Err: ErrTimeout}
	}

	metrics.GenerativeCalls.WithLabelValues(caller, string(res.Outcome)).Inc()
	return res
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, ErrQuota):
		return OutcomeQuota
	case errors.Is(err, ErrMalformed):
		return OutcomeMalformed
	default:
		return OutcomeError
	}
}

// Unconfigured is the Client used when no provider is set. Every call fails
// with ErrUnavailable so callers take their fallback path.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}
