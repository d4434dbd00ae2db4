// Package adapter defines the translation contract between the canonical
// chat format and provider-native wire formats, plus the registry that maps
// provider types to constructors.
//
// Adapters are pure with respect to payloads: they perform no I/O, retain no
// state between calls, and are safe for concurrent use across requests. All
// per-stream mutable state lives in State, which is owned by exactly one
// in-flight request.
package adapter

import (
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

// Adapter translates between canonical and provider-native shapes for one
// upstream provider.
type Adapter interface {
	// Name returns the provider type identifier (e.g. "openai", "coze").
	Name() string

	// TransformRequest converts a canonical request into the provider's wire
	// payload. The same transformation serves unary and streaming calls.
	TransformRequest(req *domain.CanonicalRequest) (*transport.Request, error)

	// TransformResponse converts a provider's unary response body into a
	// canonical response. Malformed-but-parseable payloads degrade to empty
	// content and zero usage rather than failing.
	TransformResponse(req *domain.CanonicalRequest, body []byte) (*domain.CanonicalResponse, error)
}

// StreamAdapter is implemented by adapters whose provider speaks an event
// stream. Providers without it are served by the router's unary fallback.
type StreamAdapter interface {
	Adapter

	// TransformStreamEvent converts one provider event into zero or more
	// canonical events, using st for cross-event tracking. Events that carry
	// no forwardable content (lifecycle markers, non-answer message types)
	// return an empty slice.
	TransformStreamEvent(ev transport.RawEvent, st *State) ([]domain.StreamEvent, error)
}

// State is the per-stream scratchpad shared between the adapter's event
// translation and the transcoder that owns it. One instance per in-flight
// streaming request; never shared.
type State struct {
	// RoleSent records that the role announcement has been emitted.
	RoleSent bool
	// Content is the accumulated answer text so far.
	Content string
	// Usage is the last usage report seen, if any.
	Usage *domain.Usage
	// NativeID is the provider's identifier for this exchange, used to
	// namespace the synthesized response ID.
	NativeID string
	// FinishReason is the canonical finish reason once known.
	FinishReason string
	// Done records that a terminal event has been produced.
	Done bool
}
