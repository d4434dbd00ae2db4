// Package audit writes interaction records after post-processing. Recording
// is fire-and-forget: storage failures are logged and never fail the request.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/storage"
)

const saveTimeout = 5 * time.Second

// Recorder persists audited interactions.
type Recorder struct {
	store  storage.InteractionStore
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given store. A nil store disables
// recording.
func NewRecorder(store storage.InteractionStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record saves one interaction asynchronously. The caller's context is not
// used; a request that finished (or failed) still gets audited.
func (r *Recorder) Record(it *storage.Interaction) {
	if r == nil || r.store == nil {
		return
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := r.store.SaveInteraction(ctx, it); err != nil {
			r.logger.Warn("failed to record interaction",
				"interaction_id", it.ID,
				"provider", it.Provider,
				"error", err)
		}
	}()
}
