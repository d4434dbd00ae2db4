// Package transport performs the HTTP exchange with an upstream provider
// using adapter-produced payloads. It exposes either a single decoded
// response body or an ordered, lazily-produced sequence of raw provider
// events, never both for the same call.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Request is the provider-shaped payload an adapter hands to the transport.
// The body is opaque to the transport; each adapter owns its own shape.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   json.RawMessage
}

// RawEvent is one provider stream event as it arrived on the wire.
// Type carries the SSE event name when the provider sends one; Data is the
// raw payload. Err is set instead when the stream failed mid-flight.
type RawEvent struct {
	Type string
	Data json.RawMessage
	Err  error
}

// Config holds the per-provider settings resolved once at construction.
type Config struct {
	BaseURL string
	APIKey  string
	// Headers are platform-specific custom headers sent on every request
	// (e.g. anthropic-version). Authorization is derived from APIKey unless
	// overridden here.
	Headers map[string]string
	// Timeout bounds the full exchange for unary calls, and time-to-first-byte
	// plus inter-event silence for streaming calls.
	Timeout time.Duration
}

// Option configures the transport.
type Option func(*Transport)

// WithHTTPClient sets a custom HTTP client, e.g. a VCR recorder in tests.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		t.client = client
	}
}

// Transport issues HTTP calls to one provider. It never retries; retry
// policy, if any, belongs to the caller to avoid duplicating non-idempotent
// completions.
type Transport struct {
	cfg    Config
	client *http.Client
}

// New creates a transport from provider settings.
func New(cfg Config, opts ...Option) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	t := &Transport{cfg: cfg}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	return t
}

// Do performs a unary exchange and returns the decoded response body.
func (t *Transport) Do(ctx context.Context, provider string, req *Request) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	resp, err := t.send(ctx, req)
	if err != nil {
		return nil, t.wrapErr(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, t.wrapErr(provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, t.wrapErr(provider, &statusError{status: resp.StatusCode, body: body, provider: provider})
	}

	if !json.Valid(body) {
		return nil, t.wrapErr(provider, &statusError{status: resp.StatusCode, provider: provider, body: body, badPayload: true})
	}

	return body, nil
}

// Stream performs a streaming exchange and returns an ordered channel of raw
// provider events. The channel is closed when the upstream stream ends, the
// context is cancelled, or no event arrives within the configured timeout;
// the final event carries Err in the failure cases.
func (t *Transport) Stream(ctx context.Context, provider string, req *Request) (<-chan RawEvent, error) {
	ctx, cancel := context.WithCancel(ctx)

	// The timeout also bounds the wait for response headers; a provider that
	// accepts the connection and never answers must not hold the request open.
	headerTimer := time.AfterFunc(t.cfg.Timeout, cancel)
	resp, err := t.send(ctx, req)
	if !headerTimer.Stop() {
		if err == nil {
			resp.Body.Close()
		}
		cancel()
		return nil, t.wrapErr(provider, &TimeoutError{Provider: provider})
	}
	if err != nil {
		cancel()
		return nil, t.wrapErr(provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, t.wrapErr(provider, &statusError{status: resp.StatusCode, body: body, provider: provider})
	}

	raw := make(chan RawEvent)
	go readEvents(resp.Body, raw)

	// The watchdog enforces inter-event silence: if the upstream goes quiet
	// past the timeout, the in-flight call is torn down and the consumer sees
	// a timeout event followed by channel close.
	out := make(chan RawEvent)
	go func() {
		defer close(out)
		defer cancel()

		// On teardown the reader may still be blocked on a send; drain it so
		// it can observe the closed body and exit.
		drain := func() {
			resp.Body.Close()
			go func() {
				for range raw {
				}
			}()
		}

		timer := time.NewTimer(t.cfg.Timeout)
		defer timer.Stop()

		for {
			select {
			case ev, ok := <-raw:
				if !ok {
					return
				}
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(t.cfg.Timeout)

				select {
				case out <- ev:
				case <-ctx.Done():
					drain()
					return
				}
			case <-timer.C:
				drain()
				// The consumer may already be gone; never block on its behalf.
				select {
				case out <- RawEvent{Err: &TimeoutError{Provider: provider}}:
				case <-ctx.Done():
				}
				return
			case <-ctx.Done():
				drain()
				return
			}
		}
	}()

	return out, nil
}

func (t *Transport) send(ctx context.Context, req *Request) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	u := t.cfg.BaseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if t.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}
	for k, v := range t.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	return t.client.Do(httpReq)
}

// readEvents parses an SSE-style body (event:/data: lines) into raw events.
// Bare data: lines without an event: prefix are emitted with an empty Type.
func readEvents(body io.ReadCloser, out chan<- RawEvent) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var currentEvent string

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "event:") {
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			out <- RawEvent{
				Type: currentEvent,
				Data: json.RawMessage(data),
			}
			currentEvent = ""
		}
	}

	if err := scanner.Err(); err != nil {
		out <- RawEvent{Err: fmt.Errorf("stream read: %w", err)}
	}
}
