// Package transcode converts a live provider event stream into canonical
// stream events through a per-request state machine, and reconstructs the
// full canonical response once the stream ends.
//
// The machine has three phases: awaiting the role announcement, streaming
// deltas, and done. It enforces the wire contract regardless of what the
// adapter emits: exactly one role event first, zero or more deltas, exactly
// one terminal event last. A stream that ends without an explicit completion
// signal gets a synthesized terminal event so the caller's stream never hangs
// open.
package transcode

import (
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

type phase int

const (
	awaitingRole phase = iota
	streaming
	done
)

// Transcoder folds provider stream events into canonical events for one
// in-flight request. It is owned by exactly that request and is not safe for
// concurrent use.
type Transcoder struct {
	adapter adapter.StreamAdapter
	req     *domain.CanonicalRequest
	state   adapter.State
	phase   phase
	role    string
}

// New creates a transcoder for one streaming request.
func New(sa adapter.StreamAdapter, req *domain.CanonicalRequest) *Transcoder {
	return &Transcoder{adapter: sa, req: req}
}

// Process translates one raw provider event into zero or more canonical
// events, in order. A returned error means the stream cannot continue; the
// caller decides whether to surface it or terminate via Finish.
func (t *Transcoder) Process(ev transport.RawEvent) ([]domain.StreamEvent, error) {
	if t.phase == done {
		return nil, nil
	}
	if ev.Err != nil {
		return nil, ev.Err
	}

	events, err := t.adapter.TransformStreamEvent(ev, &t.state)
	if err != nil {
		return nil, err
	}

	out := make([]domain.StreamEvent, 0, len(events))
	for _, e := range events {
		if t.phase == done {
			break
		}
		switch e.Type {
		case domain.EventRole:
			if t.state.RoleSent {
				continue
			}
			t.sendRole(&out, e.Role)

		case domain.EventDelta:
			if e.Delta == "" {
				continue
			}
			if !t.state.RoleSent {
				t.sendRole(&out, domain.RoleAssistant)
			}
			t.state.Content += e.Delta
			out = append(out, e)

		case domain.EventDone:
			if !t.state.RoleSent {
				t.sendRole(&out, domain.RoleAssistant)
			}
			t.state.FinishReason = e.FinishReason
			if e.Usage != nil {
				t.state.Usage = e.Usage
			}
			t.state.Done = true
			t.phase = done
			out = append(out, e)
		}
	}
	return out, nil
}

// Finish terminates the stream if it has not terminated naturally, returning
// the events still owed to the caller. An upstream that closed silently
// yields a terminal event with the best-known finish reason, defaulting to
// stop.
func (t *Transcoder) Finish() []domain.StreamEvent {
	if t.phase == done {
		return nil
	}

	var out []domain.StreamEvent
	if !t.state.RoleSent {
		t.sendRole(&out, domain.RoleAssistant)
	}

	finish := t.state.FinishReason
	if finish == "" {
		finish = domain.FinishStop
	}
	t.state.FinishReason = finish
	t.state.Done = true
	t.phase = done
	return append(out, domain.DoneEvent(finish, t.state.Usage))
}

// Done reports whether the terminal event has been produced.
func (t *Transcoder) Done() bool { return t.phase == done }

// Response reconstructs the canonical response equivalent to what a unary
// call would have produced, for post-processing and audit. Valid once the
// stream is done.
func (t *Transcoder) Response() *domain.CanonicalResponse {
	role := t.role
	if role == "" {
		role = domain.RoleAssistant
	}
	finish := t.state.FinishReason
	if finish == "" {
		finish = domain.FinishStop
	}
	var usage domain.Usage
	if t.state.Usage != nil {
		usage = *t.state.Usage
	}

	nativeID := t.state.NativeID
	if nativeID == "" {
		nativeID = uuid.NewString()
	}

	return &domain.CanonicalResponse{
		ID:      t.adapter.Name() + "-" + nativeID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   t.req.Model,
		Choices: []domain.Choice{{
			Message:      domain.Message{Role: role, Content: t.state.Content},
			FinishReason: finish,
		}},
		Usage: usage,
	}
}

func (t *Transcoder) sendRole(out *[]domain.StreamEvent, role string) {
	if role == "" {
		role = domain.RoleAssistant
	}
	t.state.RoleSent = true
	t.role = role
	t.phase = streaming
	*out = append(*out, domain.RoleEvent(role))
}
