// Package anthropic adapts the canonical chat format to the Anthropic
// Messages API. System messages are lifted out of the message list into the
// dedicated system field, and the event stream (message_start /
// content_block_delta / message_delta / message_stop) is folded into the
// canonical role/delta/terminal sequence.
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

const (
	messagesPath = "/v1/messages"
	apiVersion   = "2023-06-01"

	// The Messages API requires max_tokens; applied when the request
	// carries none.
	defaultMaxTokens = 4096
)

var finishReasons = map[string]string{
	"end_turn":      domain.FinishStop,
	"stop_sequence": domain.FinishStop,
	"max_tokens":    domain.FinishLength,
}

// Register wires the anthropic factory into the adapter registry.
func Register() {
	adapter.RegisterFactory(adapter.Factory{
		Type:        "anthropic",
		Description: "Anthropic Messages API",
		New: func(cfg config.ProviderConfig) (adapter.Adapter, error) {
			return &Adapter{}, nil
		},
		TransportConfig: func(cfg config.ProviderConfig) transport.Config {
			// Anthropic authenticates with x-api-key, not a bearer token.
			headers := map[string]string{
				"x-api-key":         cfg.APIKey,
				"anthropic-version": apiVersion,
			}
			for k, v := range cfg.Headers {
				headers[k] = v
			}
			return transport.Config{
				BaseURL: cfg.BaseURL,
				Headers: headers,
				Timeout: cfg.TimeoutOrDefault(0),
			}
		},
		ValidateConfig: func(cfg config.ProviderConfig) error {
			if cfg.APIKey == "" {
				return fmt.Errorf("api_key is required")
			}
			return nil
		},
	})
}

// Adapter translates canonical chat requests to the Messages API.
type Adapter struct{}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) TransformRequest(req *domain.CanonicalRequest) (*transport.Request, error) {
	if len(req.Messages) == 0 {
		return nil, domain.NewConfigError("anthropic: messages cannot be empty")
	}

	var system []string
	msgs := make([]message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		msgs = append(msgs, message{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(messagesRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      strings.Join(system, "\n\n"),
		Messages:    msgs,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("encode anthropic request: %w", err)
	}

	return &transport.Request{Path: messagesPath, Body: body}, nil
}

func (a *Adapter) TransformResponse(req *domain.CanonicalRequest, body []byte) (*domain.CanonicalResponse, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &domain.CanonicalResponse{
		ID:      "anthropic-" + resp.ID,
		Object:  "chat.completion",
		Created: nowUnix(),
		Model:   req.Model,
		Choices: []domain.Choice{{
			Message:      domain.Message{Role: domain.RoleAssistant, Content: content.String()},
			FinishReason: domain.MapFinishReason(finishReasons, resp.StopReason),
		}},
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func (a *Adapter) TransformStreamEvent(ev transport.RawEvent, st *adapter.State) ([]domain.StreamEvent, error) {
	switch ev.Type {
	case "message_start":
		var start messageStartEvent
		if err := json.Unmarshal(ev.Data, &start); err == nil {
			st.NativeID = start.Message.ID
			st.Usage = &domain.Usage{PromptTokens: start.Message.Usage.InputTokens}
		}
		if !st.RoleSent {
			return []domain.StreamEvent{domain.RoleEvent(domain.RoleAssistant)}, nil
		}
		return nil, nil

	case "content_block_delta":
		var delta contentBlockDeltaEvent
		if err := json.Unmarshal(ev.Data, &delta); err != nil {
			return nil, nil
		}
		if delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
			return nil, nil
		}
		return []domain.StreamEvent{domain.DeltaEvent(delta.Delta.Text)}, nil

	case "message_delta":
		// Carries the stop reason and output token count ahead of
		// message_stop; stashed for the terminal event.
		var md messageDeltaEvent
		if err := json.Unmarshal(ev.Data, &md); err != nil {
			return nil, nil
		}
		if md.Delta.StopReason != "" {
			st.FinishReason = domain.MapFinishReason(finishReasons, md.Delta.StopReason)
		}
		if st.Usage == nil {
			st.Usage = &domain.Usage{}
		}
		st.Usage.CompletionTokens = md.Usage.OutputTokens
		st.Usage.TotalTokens = st.Usage.PromptTokens + md.Usage.OutputTokens
		return nil, nil

	case "message_stop":
		finish := st.FinishReason
		if finish == "" {
			finish = domain.FinishStop
		}
		return []domain.StreamEvent{domain.DoneEvent(finish, st.Usage)}, nil

	case "error":
		var e errorEvent
		if err := json.Unmarshal(ev.Data, &e); err == nil && e.Error.Message != "" {
			return nil, fmt.Errorf("anthropic stream error: %s: %s", e.Error.Type, e.Error.Message)
		}
		return nil, fmt.Errorf("anthropic stream error")
	}

	// ping, content_block_start, content_block_stop: lifecycle only.
	return nil, nil
}
