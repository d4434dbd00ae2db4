// Package storage defines the audit persistence interface and the record
// shape shared by its implementations.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Interaction is one audited request/response exchange, written after
// post-processing completes.
type Interaction struct {
	ID        string
	Client    string
	Provider  string
	Model     string
	Streaming bool
	Status    string
	Duration  time.Duration
	Request   json.RawMessage
	Response  json.RawMessage
	Error     string
	CreatedAt time.Time
}

// Interaction statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// InteractionStore persists audited interactions.
type InteractionStore interface {
	SaveInteraction(ctx context.Context, it *Interaction) error
	Close() error
}
