// Package google adapts the canonical chat format to the Gemini
// generateContent API. Gemini does not speak the gateway's event protocol, so
// the adapter is unary only; streaming requests are served by the router's
// unary fallback.
package google

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/adapter"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

var finishReasons = map[string]string{
	"STOP":       domain.FinishStop,
	"MAX_TOKENS": domain.FinishLength,
}

// Register wires the google factory into the adapter registry.
func Register() {
	adapter.RegisterFactory(adapter.Factory{
		Type:        "google",
		Description: "Google Gemini generateContent API",
		New: func(cfg config.ProviderConfig) (adapter.Adapter, error) {
			return &Adapter{apiKey: cfg.APIKey}, nil
		},
		TransportConfig: func(cfg config.ProviderConfig) transport.Config {
			// The key travels as a query parameter, not an auth header.
			return transport.Config{
				BaseURL: cfg.BaseURL,
				Headers: cfg.Headers,
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

// Adapter translates canonical chat requests to generateContent calls.
type Adapter struct {
	apiKey string
}

func (a *Adapter) Name() string { return "google" }

func (a *Adapter) TransformRequest(req *domain.CanonicalRequest) (*transport.Request, error) {
	if len(req.Messages) == 0 {
		return nil, domain.NewConfigError("google: messages cannot be empty")
	}

	var system []string
	contents := make([]content, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	gr := generateRequest{Contents: contents}
	if len(system) > 0 {
		gr.SystemInstruction = &content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		gr.GenerationConfig = &generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	body, err := json.Marshal(gr)
	if err != nil {
		return nil, fmt.Errorf("encode google request: %w", err)
	}

	return &transport.Request{
		Path:  "/v1beta/models/" + req.Model + ":generateContent",
		Query: url.Values{"key": []string{a.apiKey}},
		Body:  body,
	}, nil
}

func (a *Adapter) TransformResponse(req *domain.CanonicalRequest, body []byte) (*domain.CanonicalResponse, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode google response: %w", err)
	}

	var text strings.Builder
	finish := domain.FinishStop
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		finish = domain.MapFinishReason(finishReasons, cand.FinishReason)
	}

	var usage domain.Usage
	if resp.UsageMetadata != nil {
		usage = domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return &domain.CanonicalResponse{
		ID:      "google-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []domain.Choice{{
			Message:      domain.Message{Role: domain.RoleAssistant, Content: text.String()},
			FinishReason: finish,
		}},
		Usage: usage,
	}, nil
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float32 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}
