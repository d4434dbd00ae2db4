package coze

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

func TestTransformRequestFlattensHistory(t *testing.T) {
	a := New(config.ProviderConfig{})

	req := &domain.CanonicalRequest{
		Model: "bot-123",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "Be nice"},
			{Role: domain.RoleUser, Content: "A"},
			{Role: domain.RoleAssistant, Content: "B"},
			{Role: domain.RoleUser, Content: "Hello"},
		},
		Stream: true,
	}

	treq, err := a.TransformRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "/open_api/v2/chat", treq.Path)

	var body chatRequest
	require.NoError(t, json.Unmarshal(treq.Body, &body))

	// The model prefix is stripped to obtain the bot id.
	assert.Equal(t, "123", body.BotID)
	// Last message becomes the query, everything before it is history.
	assert.Equal(t, "Hello", body.Query)
	assert.True(t, body.Stream)
	require.Len(t, body.ChatHistory, 3)
	// Non user/assistant roles are normalized to assistant.
	assert.Equal(t, domain.RoleAssistant, body.ChatHistory[0].Role)
	assert.Equal(t, domain.RoleUser, body.ChatHistory[1].Role)
	assert.Equal(t, domain.RoleAssistant, body.ChatHistory[2].Role)
	assert.Equal(t, "Be nice", body.ChatHistory[0].Content)
	// No request user and no configured user falls back to the default.
	assert.Equal(t, defaultUser, body.User)
}

func TestTransformRequestEmptyMessages(t *testing.T) {
	a := New(config.ProviderConfig{})
	_, err := a.TransformRequest(&domain.CanonicalRequest{Model: "bot-1"})
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
}

func TestResolveBot(t *testing.T) {
	withDefault := New(config.ProviderConfig{BotID: "999"})
	assert.Equal(t, "123", withDefault.resolveBot("bot-123"))
	assert.Equal(t, "999", withDefault.resolveBot("gpt-4o"))

	noDefault := New(config.ProviderConfig{})
	assert.Equal(t, "plain", noDefault.resolveBot("plain"))
}

func TestTransformResponseZeroUsage(t *testing.T) {
	a := New(config.ProviderConfig{})
	req := &domain.CanonicalRequest{Model: "bot-123"}

	body := []byte(`{"code":0,"msg":"success","conversation_id":"conv-1","messages":[
		{"role":"assistant","type":"verbose","content":"thinking"},
		{"role":"assistant","type":"answer","content":"Hi there!"},
		{"role":"assistant","type":"follow_up","content":"More?"}]}`)

	resp, err := a.TransformResponse(req, body)
	require.NoError(t, err)

	// The original prefixed model round-trips unchanged.
	assert.Equal(t, "bot-123", resp.Model)
	assert.Equal(t, "coze-conv-1", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hi there!", resp.Choices[0].Message.Content)
	assert.Equal(t, domain.FinishStop, resp.Choices[0].FinishReason)
	// Coze reports no usage on unary replies; all three fields stay zero.
	assert.Equal(t, domain.Usage{}, resp.Usage)
}

func TestTransformResponseUpstreamError(t *testing.T) {
	a := New(config.ProviderConfig{})
	_, err := a.TransformResponse(&domain.CanonicalRequest{Model: "bot-1"},
		[]byte(`{"code":4000,"msg":"bot not found"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot not found")
}

func event(name, data string) transport.RawEvent {
	return transport.RawEvent{Type: name, Data: json.RawMessage(data)}
}

func TestStreamLifecycle(t *testing.T) {
	a := New(config.ProviderConfig{})
	st := &adapter.State{}

	evs, err := a.TransformStreamEvent(event("conversation.chat.created", `{"id":"chat-1","conversation_id":"conv-1","status":"created"}`), st)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventRole, evs[0].Type)
	assert.Equal(t, "conv-1", st.NativeID)

	// in_progress is a lifecycle marker, never forwarded.
	evs, err = a.TransformStreamEvent(event("conversation.chat.in_progress", `{"status":"in_progress"}`), st)
	require.NoError(t, err)
	assert.Empty(t, evs)

	evs, err = a.TransformStreamEvent(event("conversation.message.delta", `{"role":"assistant","type":"answer","content":"Hi "}`), st)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "Hi ", evs[0].Delta)

	// Non-answer message types are consumed.
	evs, err = a.TransformStreamEvent(event("conversation.message.delta", `{"type":"verbose","content":"noise"}`), st)
	require.NoError(t, err)
	assert.Empty(t, evs)

	evs, err = a.TransformStreamEvent(event("conversation.chat.completed", `{"status":"completed","usage":{"token_count":30,"output_count":10,"input_count":20}}`), st)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventDone, evs[0].Type)
	assert.Equal(t, domain.FinishStop, evs[0].FinishReason)
	require.NotNil(t, evs[0].Usage)
	assert.Equal(t, 20, evs[0].Usage.PromptTokens)
	assert.Equal(t, 10, evs[0].Usage.CompletionTokens)
	assert.Equal(t, 30, evs[0].Usage.TotalTokens)
}

func TestStreamFinishReasons(t *testing.T) {
	a := New(config.ProviderConfig{})

	tests := []struct {
		status string
		want   string
	}{
		{"completed", domain.FinishStop},
		{"interrupted", domain.FinishStop},
		{"max_tokens", domain.FinishLength},
		{"unheard_of", domain.FinishStop},
	}
	for _, tt := range tests {
		evs, err := a.TransformStreamEvent(event("conversation.chat.completed", `{"status":"`+tt.status+`"}`), &adapter.State{})
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.Equal(t, tt.want, evs[0].FinishReason, "status %s", tt.status)
	}
}

func TestMessageCompletedDeliveredOnceOnly(t *testing.T) {
	a := New(config.ProviderConfig{})

	// Nothing streamed yet: the completed answer becomes the one delta.
	st := &adapter.State{RoleSent: true}
	evs, err := a.TransformStreamEvent(event("conversation.message.completed", `{"type":"answer","content":"Hi there!"}`), st)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "Hi there!", evs[0].Delta)

	// Deltas already went out: the completed answer is a restatement.
	st = &adapter.State{RoleSent: true, Content: "Hi there!"}
	evs, err = a.TransformStreamEvent(event("conversation.message.completed", `{"type":"answer","content":"Hi there!"}`), st)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestStreamChatFailed(t *testing.T) {
	a := New(config.ProviderConfig{})
	_, err := a.TransformStreamEvent(event("conversation.chat.failed", `{"status":"failed","last_error":{"code":5000,"msg":"internal"}}`), &adapter.State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal")
}
