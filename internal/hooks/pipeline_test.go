package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
)

func testResponse(content string) *domain.CanonicalResponse {
	return &domain.CanonicalResponse{
		ID:     "test-1",
		Object: "chat.completion",
		Model:  "m",
		Choices: []domain.Choice{{
			Message:      domain.Message{Role: domain.RoleAssistant, Content: content},
			FinishReason: domain.FinishStop,
		}},
	}
}

func appendingHook(name, suffix string) Hook {
	return Func{
		HookName: name,
		Fn: func(ctx context.Context, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) (*domain.CanonicalResponse, error) {
			out := *resp
			out.Choices = append([]domain.Choice(nil), resp.Choices...)
			out.Choices[0].Message.Content += suffix
			return &out, nil
		},
	}
}

func TestEmptyPipelineIsNoOp(t *testing.T) {
	p := NewPipeline(slog.Default())
	in := testResponse("unchanged")
	out := p.Run(context.Background(), &domain.CanonicalRequest{}, in)
	assert.Same(t, in, out)
}

func TestHooksRunInOrder(t *testing.T) {
	p := NewPipeline(slog.Default(),
		appendingHook("first", "-a"),
		appendingHook("second", "-b"),
	)
	out := p.Run(context.Background(), &domain.CanonicalRequest{}, testResponse("x"))
	assert.Equal(t, "x-a-b", out.Content())
}

func TestFailingHookIsSkipped(t *testing.T) {
	failing := Func{
		HookName: "failing",
		Fn: func(ctx context.Context, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) (*domain.CanonicalResponse, error) {
			return nil, errors.New("boom")
		},
	}
	p := NewPipeline(slog.Default(), failing, appendingHook("appending", "!"))

	out := p.Run(context.Background(), &domain.CanonicalRequest{}, testResponse("hello"))
	// The failure is isolated; the next hook still applies.
	assert.Equal(t, "hello!", out.Content())
}

func TestPanickingHookIsSkipped(t *testing.T) {
	panicking := Func{
		HookName: "panicking",
		Fn: func(ctx context.Context, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) (*domain.CanonicalResponse, error) {
			panic("unexpected")
		},
	}
	p := NewPipeline(slog.Default(), panicking, appendingHook("appending", "!"))

	out := p.Run(context.Background(), &domain.CanonicalRequest{}, testResponse("hello"))
	assert.Equal(t, "hello!", out.Content())
}

func TestWebhookReplacesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		replacement := testResponse("rewritten")
		writeJSON(t, w, replacement)
	}))
	defer srv.Close()

	w := NewWebhook(config.HookConfig{Name: "rewriter", Type: "webhook", URL: srv.URL})
	out, err := w.Apply(context.Background(), &domain.CanonicalRequest{Model: "m"}, testResponse("original"))
	require.NoError(t, err)
	assert.Equal(t, "rewritten", out.Content())
}

func TestWebhookNoContentLeavesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(config.HookConfig{Name: "observer", Type: "webhook", URL: srv.URL})
	in := testResponse("original")
	out, err := w.Apply(context.Background(), &domain.CanonicalRequest{}, in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestWebhookFailureSkippedByPipeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewPipeline(slog.Default(),
		NewWebhook(config.HookConfig{Name: "broken", Type: "webhook", URL: srv.URL}),
		appendingHook("appending", "!"),
	)
	out := p.Run(context.Background(), &domain.CanonicalRequest{}, testResponse("hello"))
	assert.Equal(t, "hello!", out.Content())
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig([]config.HookConfig{
		{Name: "w1", Type: "webhook", URL: "http://example.com/hook"},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	_, err = FromConfig([]config.HookConfig{{Name: "bad", Type: "lua"}}, slog.Default())
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))

	_, err = FromConfig([]config.HookConfig{{Name: "nourl", Type: "webhook"}}, slog.Default())
	require.Error(t, err)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode: %v", err)
	}
}
