package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

func TestTransformRequestPassthrough(t *testing.T) {
	a := &Adapter{}
	req := &domain.CanonicalRequest{
		Model:     "gpt-4o",
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: "Hi"}},
		Stream:    true,
		MaxTokens: 100,
	}

	treq, err := a.TransformRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "/chat/completions", treq.Path)

	var echoed domain.CanonicalRequest
	require.NoError(t, json.Unmarshal(treq.Body, &echoed))
	assert.Equal(t, *req, echoed)
}

func TestTransformResponseNormalizes(t *testing.T) {
	a := &Adapter{}
	req := &domain.CanonicalRequest{Model: "gpt-4o"}

	body := []byte(`{"id":"chatcmpl-9","object":"chat.completion","created":1700000000,"model":"gpt-4o-2024","choices":[{"index":0,"message":{"role":"assistant","content":"Hey"},"finish_reason":"content_filter"}]}`)

	resp, err := a.TransformResponse(req, body)
	require.NoError(t, err)
	// The request's model string is echoed, not the upstream's alias.
	assert.Equal(t, "gpt-4o", resp.Model)
	// Unmapped finish reasons collapse to stop.
	assert.Equal(t, domain.FinishStop, resp.Choices[0].FinishReason)
	// Missing usage stays zero-filled, never absent.
	assert.Equal(t, domain.Usage{}, resp.Usage)
}

func TestTransformResponseEmptyChoices(t *testing.T) {
	a := &Adapter{}
	resp, err := a.TransformResponse(&domain.CanonicalRequest{Model: "gpt-4o"}, []byte(`{"id":"chatcmpl-0"}`))
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "", resp.Choices[0].Message.Content)
	assert.Equal(t, domain.FinishStop, resp.Choices[0].FinishReason)
}

func data(s string) transport.RawEvent {
	return transport.RawEvent{Data: json.RawMessage(s)}
}

func TestStreamChunks(t *testing.T) {
	a := &Adapter{}
	st := &adapter.State{}

	evs, err := a.TransformStreamEvent(data(`{"id":"chatcmpl-1","choices":[{"delta":{"role":"assistant","content":"He"},"finish_reason":null}]}`), st)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.EventRole, evs[0].Type)
	assert.Equal(t, "He", evs[1].Delta)
	assert.Equal(t, "chatcmpl-1", st.NativeID)

	st.RoleSent = true
	evs, err = a.TransformStreamEvent(data(`{"id":"chatcmpl-1","choices":[{"delta":{"content":"y"},"finish_reason":null}]}`), st)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "y", evs[0].Delta)

	evs, err = a.TransformStreamEvent(data(`{"id":"chatcmpl-1","choices":[{"delta":{},"finish_reason":"length"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`), st)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventDone, evs[0].Type)
	assert.Equal(t, domain.FinishLength, evs[0].FinishReason)
	require.NotNil(t, evs[0].Usage)
	assert.Equal(t, 5, evs[0].Usage.TotalTokens)
}

func TestStreamDoneSentinelIgnored(t *testing.T) {
	a := &Adapter{}
	evs, err := a.TransformStreamEvent(data(`[DONE]`), &adapter.State{})
	require.NoError(t, err)
	assert.Empty(t, evs)
}
