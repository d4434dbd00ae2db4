package coze

// Wire shapes for the coze chat API. Only the fields the gateway reads or
// writes are declared.

type chatRequest struct {
	BotID       string           `json:"bot_id"`
	User        string           `json:"user"`
	Query       string           `json:"query"`
	Stream      bool             `json:"stream"`
	ChatHistory []historyMessage `json:"chat_history,omitempty"`
}

type historyMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

type chatResponse struct {
	Code           int           `json:"code"`
	Msg            string        `json:"msg"`
	ConversationID string        `json:"conversation_id"`
	Messages       []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// chatEvent is the payload of conversation.chat.* stream events.
type chatEvent struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Status         string     `json:"status"`
	LastError      *chatError `json:"last_error,omitempty"`
	Usage          *chatUsage `json:"usage,omitempty"`
}

type chatError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type chatUsage struct {
	TokenCount  int `json:"token_count"`
	OutputCount int `json:"output_count"`
	InputCount  int `json:"input_count"`
}

// messageEvent is the payload of conversation.message.* stream events.
type messageEvent struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content string `json:"content"`
}
