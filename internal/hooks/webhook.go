package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// Webhook posts the hook context to an external URL and applies the returned
// replacement response. A 204 reply means "no modification"; any non-2xx
// reply fails the hook, which the pipeline then skips.
type Webhook struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhook builds a webhook hook from configuration.
func NewWebhook(cfg config.HookConfig) *Webhook {
	timeout := defaultWebhookTimeout
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	return &Webhook{
		name:    cfg.Name,
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Name() string { return w.name }

type webhookPayload struct {
	Request  *domain.CanonicalRequest  `json:"request"`
	Response *domain.CanonicalResponse `json:"response"`
}

func (w *Webhook) Apply(ctx context.Context, req *domain.CanonicalRequest, resp *domain.CanonicalResponse) (*domain.CanonicalResponse, error) {
	body, err := json.Marshal(webhookPayload{Request: req, Response: resp})
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call webhook %s: %w", w.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook %s returned status %d", w.name, httpResp.StatusCode)
	}

	var replacement domain.CanonicalResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&replacement); err != nil {
		return nil, fmt.Errorf("decode webhook response: %w", err)
	}
	return &replacement, nil
}

// FromConfig builds a pipeline from hook configuration, in declaration
// order.
func FromConfig(cfgs []config.HookConfig, logger *slog.Logger) (*Pipeline, error) {
	p := NewPipeline(logger)
	for _, cfg := range cfgs {
		switch cfg.Type {
		case "webhook":
			if cfg.URL == "" {
				return nil, domain.NewConfigError("hook %q: webhook url is required", cfg.Name)
			}
			p.Append(NewWebhook(cfg))
		default:
			return nil, domain.NewConfigError("hook %q: unknown type %q", cfg.Name, cfg.Type)
		}
	}
	return p, nil
}
