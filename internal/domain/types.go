package domain

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles recognized at the gateway boundary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CanonicalRequest is the provider-agnostic chat completion request.
// It is created at ingress and immutable afterwards.
type CanonicalRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	User        string    `json:"user,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
}

// Usage represents token usage. Providers that do not report usage produce
// an all-zero value, never a missing one.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CanonicalResponse represents a complete non-streaming response.
type CanonicalResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Content returns the content of the first choice, or "" when there is none.
func (r *CanonicalResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Canonical finish reasons. Every provider-native stop reason is mapped into
// this closed set; unmapped reasons fall back to FinishStop.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// MapFinishReason looks up a provider-native stop reason in the provider's
// mapping table, falling back to FinishStop for unmapped reasons.
func MapFinishReason(table map[string]string, native string) string {
	if mapped, ok := table[native]; ok {
		return mapped
	}
	return FinishStop
}

// StreamEventType identifies the kind of a canonical stream event.
type StreamEventType int

const (
	// EventRole announces the assistant role. Exactly one per stream, first.
	EventRole StreamEventType = iota
	// EventDelta carries one content increment.
	EventDelta
	// EventDone terminates the stream with a finish reason. Always last.
	EventDone
)

// StreamEvent is one increment of a streaming response.
type StreamEvent struct {
	Type         StreamEventType
	Role         string
	Delta        string
	FinishReason string
	Usage        *Usage
}

// RoleEvent builds a role-announcement event.
func RoleEvent(role string) StreamEvent {
	return StreamEvent{Type: EventRole, Role: role}
}

// DeltaEvent builds a content-delta event.
func DeltaEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventDelta, Delta: delta}
}

// DoneEvent builds a terminal event.
func DoneEvent(finishReason string, usage *Usage) StreamEvent {
	return StreamEvent{Type: EventDone, FinishReason: finishReason, Usage: usage}
}

// Model describes a model entry exposed at the boundary.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
	Created int64  `json:"created,omitempty"`
}

// ModelList is the canonical model listing response.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
