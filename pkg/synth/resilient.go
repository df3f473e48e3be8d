package synth

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/sovereignlab/sovereign/pkg/domain/synth"
)

// DefaultCompletionTimeout bounds a single generation call. A timeout is a
// failure outcome and takes the same abort path as an explicit rejection.
const DefaultCompletionTimeout = 300 * time.Second

// ResilientProvider bounds the inner provider with a hard timeout. It does
// not retry: transient generation failures surface to the pipeline, which
// fails the run and waits for the next trigger.
type ResilientProvider struct {
	inner   synth.Provider
	timeout time.Duration
}

func NewResilientProvider(inner synth.Provider, d time.Duration) *ResilientProvider {
	if d <= 0 {
		d = DefaultCompletionTimeout
	}
	return &ResilientProvider{inner: inner, timeout: d}
}

func (p *ResilientProvider) ID() string {
	return p.inner.ID()
}

func (p *ResilientProvider) Complete(ctx context.Context, req synth.CompletionRequest) (*synth.CompletionResponse, error) {
	t := timeout.New[*synth.CompletionResponse](timeout.Config{
		DefaultTimeout: p.timeout,
	})

	return t.Execute(ctx, p.timeout, func(ctx context.Context) (*synth.CompletionResponse, error) {
		return p.inner.Complete(ctx, req)
	})
}
