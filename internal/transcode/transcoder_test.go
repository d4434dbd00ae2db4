package transcode

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/adapter/coze"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

// scriptAdapter replays canned canonical events per raw event type.
type scriptAdapter struct {
	script map[string][]domain.StreamEvent
	errOn  string
}

func (s *scriptAdapter) Name() string { return "script" }

func (s *scriptAdapter) TransformRequest(req *domain.CanonicalRequest) (*transport.Request, error) {
	return &transport.Request{}, nil
}

func (s *scriptAdapter) TransformResponse(req *domain.CanonicalRequest, body []byte) (*domain.CanonicalResponse, error) {
	return &domain.CanonicalResponse{}, nil
}

func (s *scriptAdapter) TransformStreamEvent(ev transport.RawEvent, st *adapter.State) ([]domain.StreamEvent, error) {
	if s.errOn != "" && ev.Type == s.errOn {
		return nil, errors.New("script error")
	}
	return s.script[ev.Type], nil
}

func raw(name string) transport.RawEvent {
	return transport.RawEvent{Type: name, Data: json.RawMessage(`{}`)}
}

func collect(t *testing.T, tc *Transcoder, names ...string) []domain.StreamEvent {
	t.Helper()
	var out []domain.StreamEvent
	for _, name := range names {
		evs, err := tc.Process(raw(name))
		require.NoError(t, err)
		out = append(out, evs...)
	}
	return append(out, tc.Finish()...)
}

func TestWellFormedSequence(t *testing.T) {
	sa := &scriptAdapter{script: map[string][]domain.StreamEvent{
		"start": {domain.RoleEvent(domain.RoleAssistant)},
		"d1":    {domain.DeltaEvent("Hel")},
		"d2":    {domain.DeltaEvent("lo")},
		"end":   {domain.DoneEvent(domain.FinishStop, nil)},
	}}
	tc := New(sa, &domain.CanonicalRequest{Model: "m"})

	out := collect(t, tc, "start", "d1", "d2", "end")

	require.Len(t, out, 4)
	assert.Equal(t, domain.EventRole, out[0].Type)
	assert.Equal(t, "Hel", out[1].Delta)
	assert.Equal(t, "lo", out[2].Delta)
	assert.Equal(t, domain.EventDone, out[3].Type)
}

func TestSilentEndSynthesizesTerminal(t *testing.T) {
	sa := &scriptAdapter{script: map[string][]domain.StreamEvent{
		"start": {domain.RoleEvent(domain.RoleAssistant)},
		"d1":    {domain.DeltaEvent("partial")},
	}}
	tc := New(sa, &domain.CanonicalRequest{Model: "m"})

	// The upstream closed without a completion signal.
	out := collect(t, tc, "start", "d1")

	require.Len(t, out, 3)
	last := out[len(out)-1]
	assert.Equal(t, domain.EventDone, last.Type)
	assert.Equal(t, domain.FinishStop, last.FinishReason)
	assert.Equal(t, "partial", tc.Response().Content())
}

func TestOrphanDeltaGetsRoleFirst(t *testing.T) {
	sa := &scriptAdapter{script: map[string][]domain.StreamEvent{
		"d1": {domain.DeltaEvent("Hi")},
	}}
	tc := New(sa, &domain.CanonicalRequest{Model: "m"})

	out := collect(t, tc, "d1")

	require.Len(t, out, 3)
	assert.Equal(t, domain.EventRole, out[0].Type)
	assert.Equal(t, "Hi", out[1].Delta)
	assert.Equal(t, domain.EventDone, out[2].Type)
}

func TestDuplicateRoleDropped(t *testing.T) {
	sa := &scriptAdapter{script: map[string][]domain.StreamEvent{
		"start": {domain.RoleEvent(domain.RoleAssistant)},
	}}
	tc := New(sa, &domain.CanonicalRequest{Model: "m"})

	out := collect(t, tc, "start", "start", "start")

	roles := 0
	for _, e := range out {
		if e.Type == domain.EventRole {
			roles++
		}
	}
	assert.Equal(t, 1, roles)
}

func TestEventsAfterDoneConsumed(t *testing.T) {
	sa := &scriptAdapter{script: map[string][]domain.StreamEvent{
		"end": {domain.DoneEvent(domain.FinishStop, nil)},
		"d1":  {domain.DeltaEvent("late")},
	}}
	tc := New(sa, &domain.CanonicalRequest{Model: "m"})

	out := collect(t, tc, "end", "d1")

	assert.Equal(t, domain.EventDone, out[len(out)-1].Type)
	for _, e := range out {
		assert.NotEqual(t, "late", e.Delta)
	}
	assert.True(t, tc.Done())
	assert.Empty(t, tc.Finish())
}

func TestProcessSurfacesAdapterError(t *testing.T) {
	sa := &scriptAdapter{errOn: "boom"}
	tc := New(sa, &domain.CanonicalRequest{Model: "m"})

	_, err := tc.Process(raw("boom"))
	require.Error(t, err)
}

func TestProcessSurfacesTransportError(t *testing.T) {
	tc := New(&scriptAdapter{}, &domain.CanonicalRequest{Model: "m"})
	_, err := tc.Process(transport.RawEvent{Err: errors.New("upstream gone")})
	require.Error(t, err)
}

// The coze created → in_progress → completed-with-answer sequence yields
// exactly three canonical events, and the reconstructed response echoes the
// prefixed model.
func TestCozeScenario(t *testing.T) {
	a := coze.New(config.ProviderConfig{})
	req := &domain.CanonicalRequest{
		Model:    "bot-123",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hello"}},
		Stream:   true,
	}
	tc := New(a, req)

	feed := []transport.RawEvent{
		{Type: "conversation.chat.created", Data: json.RawMessage(`{"conversation_id":"conv-9","status":"created"}`)},
		{Type: "conversation.chat.in_progress", Data: json.RawMessage(`{"status":"in_progress"}`)},
		{Type: "conversation.message.completed", Data: json.RawMessage(`{"type":"answer","content":"Hi there!"}`)},
	}

	var out []domain.StreamEvent
	for _, ev := range feed {
		evs, err := tc.Process(ev)
		require.NoError(t, err)
		out = append(out, evs...)
	}
	out = append(out, tc.Finish()...)

	require.Len(t, out, 3)
	assert.Equal(t, domain.EventRole, out[0].Type)
	assert.Equal(t, domain.RoleAssistant, out[0].Role)
	assert.Equal(t, domain.EventDelta, out[1].Type)
	assert.Equal(t, "Hi there!", out[1].Delta)
	assert.Equal(t, domain.EventDone, out[2].Type)
	assert.Equal(t, domain.FinishStop, out[2].FinishReason)

	resp := tc.Response()
	assert.Equal(t, "bot-123", resp.Model)
	assert.Equal(t, "Hi there!", resp.Content())
	assert.Equal(t, "coze-conv-9", resp.ID)
	assert.Equal(t, domain.Usage{}, resp.Usage)
}
