// Package hooks runs ordered post-processing transforms over a completed
// canonical response. Hooks execute strictly in registration order and each
// runs inside its own fault boundary: a hook that errors or panics is logged
// and skipped, and its input flows unchanged to the next hook.
package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaygate/relaygate/internal/domain"
)

// Hook is one post-processing transform. Apply receives the current response
// and the read-only originating request, and returns the replacement
// response. Hooks must be stateless; the pipeline invokes them concurrently
// across unrelated requests.
type Hook interface {
	Name() string
	Apply(ctx context.Context, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) (*domain.CanonicalResponse, error)
}

// Func adapts a function to the Hook interface.
type Func struct {
	HookName string
	Fn       func(ctx context.Context, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) (*domain.CanonicalResponse, error)
}

func (f Func) Name() string { return f.HookName }

func (f Func) Apply(ctx context.Context, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) (*domain.CanonicalResponse, error) {
	return f.Fn(ctx, req, resp)
}

// Pipeline is an append-only ordered list of hooks, built at startup and
// immutable while serving.
type Pipeline struct {
	hooks  []Hook
	logger *slog.Logger
}

// NewPipeline creates a pipeline over the given hooks.
func NewPipeline(logger *slog.Logger, hooks ...Hook) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{hooks: hooks, logger: logger}
}

// Append adds a hook to the end of the pipeline. Not safe once serving.
func (p *Pipeline) Append(h Hook) {
	p.hooks = append(p.hooks, h)
}

// Len returns the number of registered hooks.
func (p *Pipeline) Len() int { return len(p.hooks) }

// Run applies every hook in order. The output of one hook is the input of
// the next; a failed hook is skipped. With zero hooks the input is returned
// unchanged.
func (p *Pipeline) Run(ctx context.Context, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) *domain.CanonicalResponse {
	current := resp
	for _, h := range p.hooks {
		next, err := p.apply(ctx, h, req, current)
		if err != nil {
			p.logger.WarnContext(ctx, "hook failed, skipping",
				"hook", h.Name(),
				"error", err)
			continue
		}
		if next != nil {
			current = next
		}
	}
	return current
}

// apply invokes one hook, converting a panic into an error so a faulty hook
// cannot take down the request.
func (p *Pipeline) apply(ctx context.Context, h Hook, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) (out *domain.CanonicalResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	return h.Apply(ctx, req, resp)
}
