// Package openai adapts the canonical chat format to OpenAI-compatible
// upstreams. The canonical format is OpenAI-shaped, so the request passes
// through as-is; responses are normalized (finish reasons, zero-filled usage,
// model echo) rather than trusted verbatim.
package openai

import (
	"encoding/json"
	"fmt"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

// The base URL carries the version segment (e.g. https://api.openai.com/v1),
// matching how compatible upstreams publish their endpoints.
const completionsPath = "/chat/completions"

const doneSentinel = "[DONE]"

var finishReasons = map[string]string{
	"stop":   domain.FinishStop,
	"length": domain.FinishLength,
}

// Register wires the openai factory into the adapter registry.
func Register() {
	adapter.RegisterFactory(adapter.Factory{
		Type:        "openai",
		Description: "OpenAI-compatible chat completions API",
		New: func(cfg config.ProviderConfig) (adapter.Adapter, error) {
			return &Adapter{}, nil
		},
		ValidateConfig: func(cfg config.ProviderConfig) error {
			if cfg.APIKey == "" {
				return fmt.Errorf("api_key is required")
			}
			return nil
		},
	})
}

// Adapter passes canonical requests through to an OpenAI-compatible upstream.
type Adapter struct{}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) TransformRequest(req *domain.CanonicalRequest) (*transport.Request, error) {
	if len(req.Messages) == 0 {
		return nil, domain.NewConfigError("openai: messages cannot be empty")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode openai request: %w", err)
	}

	return &transport.Request{Path: completionsPath, Body: body}, nil
}

func (a *Adapter) TransformResponse(req *domain.CanonicalRequest, body []byte) (*domain.CanonicalResponse, error) {
	var resp domain.CanonicalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}

	if resp.Object == "" {
		resp.Object = "chat.completion"
	}
	resp.Model = req.Model

	if len(resp.Choices) == 0 {
		resp.Choices = []domain.Choice{{
			Message:      domain.Message{Role: domain.RoleAssistant},
			FinishReason: domain.FinishStop,
		}}
	}
	for i := range resp.Choices {
		resp.Choices[i].FinishReason = domain.MapFinishReason(finishReasons, resp.Choices[i].FinishReason)
	}

	return &resp, nil
}

func (a *Adapter) TransformStreamEvent(ev transport.RawEvent, st *adapter.State) ([]domain.StreamEvent, error) {
	// Compatible upstreams close their streams with a literal [DONE] data
	// line; the terminal canonical event was already produced by the chunk
	// carrying finish_reason.
	if string(ev.Data) == doneSentinel {
		return nil, nil
	}

	var c chunk
	if err := json.Unmarshal(ev.Data, &c); err != nil {
		return nil, nil
	}

	if st.NativeID == "" {
		st.NativeID = c.ID
	}

	var events []domain.StreamEvent
	for _, choice := range c.Choices {
		if choice.Delta.Role != "" && !st.RoleSent {
			events = append(events, domain.RoleEvent(choice.Delta.Role))
		}
		if choice.Delta.Content != "" {
			events = append(events, domain.DeltaEvent(choice.Delta.Content))
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			events = append(events, domain.DoneEvent(domain.MapFinishReason(finishReasons, *choice.FinishReason), c.Usage))
		}
	}
	return events, nil
}

// chunk is one streamed chat.completion.chunk payload.
type chunk struct {
	ID      string        `json:"id"`
	Choices []chunkChoice `json:"choices"`
	Usage   *domain.Usage `json:"usage"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
