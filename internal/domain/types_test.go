package domain

import (
	"errors"
	"testing"
)

func TestMapFinishReason(t *testing.T) {
	table := map[string]string{
		"end_turn":   FinishStop,
		"max_tokens": FinishLength,
	}

	if got := MapFinishReason(table, "end_turn"); got != FinishStop {
		t.Errorf("end_turn: got %q, want %q", got, FinishStop)
	}
	if got := MapFinishReason(table, "max_tokens"); got != FinishLength {
		t.Errorf("max_tokens: got %q, want %q", got, FinishLength)
	}
	// Unmapped native reasons fall back to stop.
	if got := MapFinishReason(table, "something_new"); got != FinishStop {
		t.Errorf("unmapped: got %q, want %q", got, FinishStop)
	}
	if got := MapFinishReason(nil, ""); got != FinishStop {
		t.Errorf("empty: got %q, want %q", got, FinishStop)
	}
}

func TestResponseContent(t *testing.T) {
	var nilResp *CanonicalResponse
	if got := nilResp.Content(); got != "" {
		t.Errorf("nil response content: got %q", got)
	}

	resp := &CanonicalResponse{}
	if got := resp.Content(); got != "" {
		t.Errorf("empty choices content: got %q", got)
	}

	resp.Choices = []Choice{{Message: Message{Role: RoleAssistant, Content: "hello"}}}
	if got := resp.Content(); got != "hello" {
		t.Errorf("content: got %q, want %q", got, "hello")
	}
}

func TestNewErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
		wantCode any
	}{
		{
			name:     "config error",
			err:      NewConfigError("unknown provider type %q", "nope"),
			wantType: "invalid_request_error",
		},
		{
			name:     "upstream status",
			err:      &TransportError{Provider: "openai", Status: 503, Err: errors.New("unavailable")},
			wantType: "upstream_error",
			wantCode: 503,
		},
		{
			name:     "timeout",
			err:      &TransportError{Provider: "openai", Timeout: true},
			wantType: "timeout_error",
		},
		{
			name:     "unclassified",
			err:      errors.New("boom"),
			wantType: "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewErrorResponse(tt.err)
			if resp.Error.Type != tt.wantType {
				t.Errorf("type: got %q, want %q", resp.Error.Type, tt.wantType)
			}
			if tt.wantCode != nil && resp.Error.Code != tt.wantCode {
				t.Errorf("code: got %v, want %v", resp.Error.Code, tt.wantCode)
			}
			if resp.Error.Message == "" {
				t.Error("message should not be empty")
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	cfgErr := NewConfigError("bad")
	if !IsConfigError(cfgErr) {
		t.Error("IsConfigError should match ConfigError")
	}
	if IsConfigError(errors.New("other")) {
		t.Error("IsConfigError should not match plain errors")
	}

	timeout := &TransportError{Provider: "p", Timeout: true}
	if !IsTimeout(timeout) {
		t.Error("IsTimeout should match a timeout transport error")
	}
	if IsTimeout(&TransportError{Provider: "p", Status: 500}) {
		t.Error("IsTimeout should not match a status error")
	}
}
