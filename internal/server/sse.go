package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/domain"
)

// streamChunk is the wire encoding of one canonical stream event, shaped as
// a chat.completion.chunk object.
type streamChunk struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []streamChunkChoice `json:"choices"`
	Usage   *domain.Usage       `json:"usage,omitempty"`
}

type streamChunkChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// streamCompletion writes the canonical event stream as SSE data lines
// terminated by the [DONE] sentinel. Errors before the first event produce a
// plain error object instead of a stream.
func (h *Handler) streamCompletion(w http.ResponseWriter, r *http.Request, req *domain.CanonicalRequest, client string) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	// One identity for every chunk of this stream.
	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	headersSent := false

	emit := func(e domain.StreamEvent) error {
		if !headersSent {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			headersSent = true
		}

		data, err := json.Marshal(chunkFor(id, created, req.Model, e))
		if err != nil {
			return fmt.Errorf("encode stream chunk: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.router.Stream(ctx, client, req, emit)
	if err != nil {
		AddError(ctx, err)
		if !headersSent {
			writeError(w, err)
		}
		// Once events were sent the router already terminated the stream;
		// the connection just closes without [DONE].
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func chunkFor(id string, created int64, model string, e domain.StreamEvent) streamChunk {
	choice := streamChunkChoice{}
	var usage *domain.Usage

	switch e.Type {
	case domain.EventRole:
		choice.Delta = streamDelta{Role: e.Role}
	case domain.EventDelta:
		choice.Delta = streamDelta{Content: e.Delta}
	case domain.EventDone:
		finish := e.FinishReason
		choice.FinishReason = &finish
		usage = e.Usage
	}

	return streamChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []streamChunkChoice{choice},
		Usage:   usage,
	}
}
