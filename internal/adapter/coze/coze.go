// Package coze adapts the canonical chat format to the Coze bot platform.
//
// Coze addresses bots, not models: a canonical model name of the form
// "bot-<id>" targets bot <id>. The prefix is stripped on the way out and the
// original model string is echoed back unchanged, so the mapping round-trips.
// Coze also takes a single query plus ordered history instead of a message
// list; the last canonical message becomes the query and everything before it
// becomes history.
package coze

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

// ModelPrefix marks a canonical model name as targeting a coze bot.
const ModelPrefix = "bot-"

const (
	chatPath    = "/open_api/v2/chat"
	defaultUser = "relaygate"
)

var finishReasons = map[string]string{
	"completed":   domain.FinishStop,
	"interrupted": domain.FinishStop,
	"max_tokens":  domain.FinishLength,
}

// Register wires the coze factory into the adapter registry.
func Register() {
	adapter.RegisterFactory(adapter.Factory{
		Type:        "coze",
		Description: "Coze bot platform",
		New: func(cfg config.ProviderConfig) (adapter.Adapter, error) {
			return New(cfg), nil
		},
		ValidateConfig: func(cfg config.ProviderConfig) error {
			if cfg.APIKey == "" {
				return fmt.Errorf("api_key is required")
			}
			return nil
		},
	})
}

// Adapter translates canonical chat requests to the coze chat API.
type Adapter struct {
	defaultBot string
	user       string
}

// New builds a coze adapter from provider settings.
func New(cfg config.ProviderConfig) *Adapter {
	user := cfg.User
	if user == "" {
		user = defaultUser
	}
	return &Adapter{defaultBot: cfg.BotID, user: user}
}

func (a *Adapter) Name() string { return "coze" }

func (a *Adapter) TransformRequest(req *domain.CanonicalRequest) (*transport.Request, error) {
	if len(req.Messages) == 0 {
		return nil, domain.NewConfigError("coze: messages cannot be empty")
	}

	last := req.Messages[len(req.Messages)-1]
	history := make([]historyMessage, 0, len(req.Messages)-1)
	for _, m := range req.Messages[:len(req.Messages)-1] {
		history = append(history, historyMessage{
			Role:        normalizeRole(m.Role),
			Content:     m.Content,
			ContentType: "text",
		})
	}

	user := req.User
	if user == "" {
		user = a.user
	}

	body, err := json.Marshal(chatRequest{
		BotID:       a.resolveBot(req.Model),
		User:        user,
		Query:       last.Content,
		Stream:      req.Stream,
		ChatHistory: history,
	})
	if err != nil {
		return nil, fmt.Errorf("encode coze request: %w", err)
	}

	return &transport.Request{Path: chatPath, Body: body}, nil
}

func (a *Adapter) TransformResponse(req *domain.CanonicalRequest, body []byte) (*domain.CanonicalResponse, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode coze response: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("coze error %d: %s", resp.Code, resp.Msg)
	}

	// The reply carries several message kinds; only the answer is content.
	var content string
	for _, m := range resp.Messages {
		if m.Type == "answer" {
			content = m.Content
			break
		}
	}

	return &domain.CanonicalResponse{
		ID:      responseID(resp.ConversationID),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []domain.Choice{{
			Message:      domain.Message{Role: domain.RoleAssistant, Content: content},
			FinishReason: domain.FinishStop,
		}},
		Usage: domain.Usage{},
	}, nil
}

func (a *Adapter) TransformStreamEvent(ev transport.RawEvent, st *adapter.State) ([]domain.StreamEvent, error) {
	switch ev.Type {
	case "conversation.chat.created":
		var chat chatEvent
		if err := json.Unmarshal(ev.Data, &chat); err == nil {
			st.NativeID = chat.ConversationID
		}
		if !st.RoleSent {
			return []domain.StreamEvent{domain.RoleEvent(domain.RoleAssistant)}, nil
		}
		return nil, nil

	case "conversation.chat.in_progress":
		var chat chatEvent
		if err := json.Unmarshal(ev.Data, &chat); err == nil && st.NativeID == "" {
			st.NativeID = chat.ConversationID
		}
		return nil, nil

	case "conversation.message.delta":
		var msg messageEvent
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return nil, nil
		}
		if msg.Type != "answer" || msg.Content == "" {
			return nil, nil
		}
		return []domain.StreamEvent{domain.DeltaEvent(msg.Content)}, nil

	case "conversation.message.completed":
		var msg messageEvent
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return nil, nil
		}
		// A completed answer that was never streamed as deltas is delivered
		// as one delta; otherwise it just restates content already sent.
		if msg.Type == "answer" && st.Content == "" && msg.Content != "" {
			return []domain.StreamEvent{domain.DeltaEvent(msg.Content)}, nil
		}
		return nil, nil

	case "conversation.chat.completed":
		var chat chatEvent
		if err := json.Unmarshal(ev.Data, &chat); err != nil {
			return nil, nil
		}
		var usage *domain.Usage
		if chat.Usage != nil {
			usage = &domain.Usage{
				PromptTokens:     chat.Usage.InputCount,
				CompletionTokens: chat.Usage.OutputCount,
				TotalTokens:      chat.Usage.TokenCount,
			}
		}
		return []domain.StreamEvent{domain.DoneEvent(domain.MapFinishReason(finishReasons, chat.Status), usage)}, nil

	case "conversation.chat.failed":
		var chat chatEvent
		if err := json.Unmarshal(ev.Data, &chat); err == nil && chat.LastError != nil {
			return nil, fmt.Errorf("coze chat failed: %d %s", chat.LastError.Code, chat.LastError.Msg)
		}
		return nil, fmt.Errorf("coze chat failed")
	}

	// Unknown lifecycle events are consumed, never forwarded.
	return nil, nil
}

// resolveBot extracts the bot id from a prefixed model name, falling back to
// the configured default bot.
func (a *Adapter) resolveBot(model string) string {
	if id := strings.TrimPrefix(model, ModelPrefix); id != model {
		return id
	}
	if a.defaultBot != "" {
		return a.defaultBot
	}
	return model
}

// normalizeRole maps canonical roles onto the two roles coze history accepts.
func normalizeRole(role string) string {
	if role == domain.RoleUser || role == domain.RoleAssistant {
		return role
	}
	return domain.RoleAssistant
}

func responseID(conversationID string) string {
	if conversationID == "" {
		return "coze-" + uuid.NewString()
	}
	return "coze-" + conversationID
}
