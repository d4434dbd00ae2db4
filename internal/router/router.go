// Package router orchestrates one request end to end: resolve the provider
// binding, translate the request, invoke the transport, translate or
// transcode the reply, run the hook pipeline, and hand the result back.
//
// Routing is resolved once at startup from configuration: exact model names
// first, then prefix rules in declaration order, then the default provider.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/audit"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/hooks"
	"github.com/relaygate/relaygate/internal/storage"
	"github.com/relaygate/relaygate/internal/transcode"
	"github.com/relaygate/relaygate/internal/transport"
)

type prefixRule struct {
	prefix   string
	provider string
}

// Router routes canonical requests to configured provider bindings.
type Router struct {
	bindings map[string]*adapter.Binding // provider name -> binding
	exact    map[string]string           // model name -> provider name
	prefixes []prefixRule
	def      string
	pipeline *hooks.Pipeline
	recorder *audit.Recorder
	logger   *slog.Logger
}

// New builds a router from configuration. Every configured provider is
// constructed up front so configuration errors surface at startup, not on
// the first request.
func New(cfg *config.Config, pipeline *hooks.Pipeline, recorder *audit.Recorder, logger *slog.Logger, opts ...transport.Option) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pipeline == nil {
		pipeline = hooks.NewPipeline(logger)
	}

	r := &Router{
		bindings: make(map[string]*adapter.Binding),
		exact:    make(map[string]string),
		def:      cfg.Routing.DefaultProvider,
		pipeline: pipeline,
		recorder: recorder,
		logger:   logger,
	}

	for _, pc := range cfg.Providers {
		if pc.Name == "" {
			return nil, domain.NewConfigError("provider name cannot be empty")
		}
		if _, dup := r.bindings[pc.Name]; dup {
			return nil, domain.NewConfigError("duplicate provider %q", pc.Name)
		}
		binding, err := adapter.Build(pc, opts...)
		if err != nil {
			return nil, err
		}
		r.bindings[pc.Name] = binding
	}

	for _, rule := range cfg.Routing.Rules {
		if rule.Provider == "" {
			return nil, domain.NewConfigError("routing rule must name a provider")
		}
		if _, ok := r.bindings[rule.Provider]; !ok {
			return nil, domain.NewConfigError("routing rule references unknown provider %q", rule.Provider)
		}
		switch {
		case rule.ModelExact != "":
			r.exact[rule.ModelExact] = rule.Provider
		case rule.ModelPrefix != "":
			r.prefixes = append(r.prefixes, prefixRule{prefix: rule.ModelPrefix, provider: rule.Provider})
		default:
			return nil, domain.NewConfigError("routing rule must set model_exact or model_prefix")
		}
	}

	if r.def != "" {
		if _, ok := r.bindings[r.def]; !ok {
			return nil, domain.NewConfigError("default provider %q is not configured", r.def)
		}
	}

	return r, nil
}

// resolve maps a model name to its provider binding.
func (r *Router) resolve(model string) (*adapter.Binding, string, error) {
	if name, ok := r.exact[model]; ok {
		return r.bindings[name], name, nil
	}
	for _, rule := range r.prefixes {
		if strings.HasPrefix(model, rule.prefix) {
			return r.bindings[rule.provider], rule.provider, nil
		}
	}
	if r.def != "" {
		return r.bindings[r.def], r.def, nil
	}
	return nil, "", domain.NewConfigError("no provider configured for model %q", model)
}

// Complete handles a non-streaming request.
func (r *Router) Complete(ctx context.Context, client string, req *domain.CanonicalRequest) (*domain.CanonicalResponse, error) {
	start := time.Now()

	binding, provider, err := r.resolve(req.Model)
	if err != nil {
		r.record(client, provider, req, nil, err, start, false)
		return nil, err
	}

	resp, err := r.complete(ctx, binding, provider, req)
	if err != nil {
		r.record(client, provider, req, nil, err, start, false)
		return nil, err
	}

	resp = r.pipeline.Run(ctx, req, resp)
	r.record(client, provider, req, resp, nil, start, false)
	return resp, nil
}

// complete performs the unary exchange without post-processing or audit,
// shared by Complete and the streaming fallback.
func (r *Router) complete(ctx context.Context, binding *adapter.Binding, provider string, req *domain.CanonicalRequest) (*domain.CanonicalResponse, error) {
	treq, err := binding.Adapter.TransformRequest(req)
	if err != nil {
		return nil, err
	}

	body, err := binding.Transport.Do(ctx, provider, treq)
	if err != nil {
		return nil, err
	}

	resp, err := binding.Adapter.TransformResponse(req, body)
	if err != nil {
		// An upstream reply the adapter cannot decode at all is a transport
		// failure, not a gateway bug.
		return nil, &domain.TransportError{Provider: provider, Err: err}
	}
	return resp, nil
}

// Stream handles a streaming request, delivering canonical events to emit in
// order. An error returned before any event was emitted means the caller
// should receive an error object instead of a stream.
func (r *Router) Stream(ctx context.Context, client string, req *domain.CanonicalRequest, emit func(domain.StreamEvent) error) error {
	start := time.Now()

	// Cancelling tears down the upstream call when the caller goes away.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	binding, provider, err := r.resolve(req.Model)
	if err != nil {
		r.record(client, provider, req, nil, err, start, true)
		return err
	}

	sa, ok := binding.Adapter.(adapter.StreamAdapter)
	if !ok {
		return r.streamFallback(ctx, client, binding, provider, req, emit, start)
	}

	treq, err := binding.Adapter.TransformRequest(req)
	if err != nil {
		r.record(client, provider, req, nil, err, start, true)
		return err
	}

	events, err := binding.Transport.Stream(ctx, provider, treq)
	if err != nil {
		r.record(client, provider, req, nil, err, start, true)
		return err
	}

	tc := transcode.New(sa, req)
	emitted := 0
	send := func(evs []domain.StreamEvent) error {
		for _, e := range evs {
			if err := emit(e); err != nil {
				return err
			}
			emitted++
		}
		return nil
	}

	for ev := range events {
		out, perr := tc.Process(ev)
		if serr := send(out); serr != nil {
			// Caller disconnected: discard transcoder state, nothing is
			// persisted or hooked.
			return serr
		}
		if perr != nil {
			perr = transport.AsDomainError(provider, perr)
			if emitted == 0 {
				r.record(client, provider, req, nil, perr, start, true)
				return perr
			}
			// The stream already started; terminate it with the best-known
			// finish reason instead of truncating silently.
			r.logger.WarnContext(ctx, "stream failed mid-flight, terminating",
				"provider", provider,
				"error", perr)
			if serr := send(tc.Finish()); serr != nil {
				return serr
			}
			resp := r.pipeline.Run(ctx, req, tc.Response())
			r.record(client, provider, req, resp, perr, start, true)
			return nil
		}
	}

	if serr := send(tc.Finish()); serr != nil {
		return serr
	}

	resp := tc.Response()
	hooked := r.pipeline.Run(ctx, req, resp)
	// Already-delivered deltas cannot be rewritten; a hook that changed the
	// content owes the caller one trailing corrective delta.
	if hooked.Content() != resp.Content() {
		if serr := emit(domain.DeltaEvent(hooked.Content())); serr != nil {
			return serr
		}
	}

	r.record(client, provider, req, hooked, nil, start, true)
	return nil
}

// streamFallback serves a streaming request against a provider without a
// stream decoder: perform the unary call, then synthesize the canonical
// role/delta/terminal sequence from the complete response.
func (r *Router) streamFallback(ctx context.Context, client string, binding *adapter.Binding, provider string, req *domain.CanonicalRequest, emit func(domain.StreamEvent) error, start time.Time) error {
	unary := *req
	unary.Stream = false

	resp, err := r.complete(ctx, binding, provider, &unary)
	if err != nil {
		r.record(client, provider, req, nil, err, start, true)
		return err
	}
	resp = r.pipeline.Run(ctx, req, resp)

	role := domain.RoleAssistant
	finish := domain.FinishStop
	if len(resp.Choices) > 0 {
		if resp.Choices[0].Message.Role != "" {
			role = resp.Choices[0].Message.Role
		}
		if resp.Choices[0].FinishReason != "" {
			finish = resp.Choices[0].FinishReason
		}
	}

	if err := emit(domain.RoleEvent(role)); err != nil {
		return err
	}
	if content := resp.Content(); content != "" {
		if err := emit(domain.DeltaEvent(content)); err != nil {
			return err
		}
	}
	if err := emit(domain.DoneEvent(finish, &resp.Usage)); err != nil {
		return err
	}

	r.record(client, provider, req, resp, nil, start, true)
	return nil
}

// record writes the audit entry for one exchange. Fire-and-forget.
func (r *Router) record(client, provider string, req *domain.CanonicalRequest, resp *domain.CanonicalResponse, reqErr error, start time.Time, streaming bool) {
	if r.recorder == nil {
		return
	}

	it := &storage.Interaction{
		Client:    client,
		Provider:  provider,
		Model:     req.Model,
		Streaming: streaming,
		Status:    storage.StatusCompleted,
		Duration:  time.Since(start),
	}
	if b, err := json.Marshal(req); err == nil {
		it.Request = b
	}
	if resp != nil {
		if b, err := json.Marshal(resp); err == nil {
			it.Response = b
		}
	}
	if reqErr != nil {
		it.Status = storage.StatusFailed
		it.Error = reqErr.Error()
	}

	r.recorder.Record(it)
}

// Providers returns the configured provider names, for diagnostics.
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	return names
}

