package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/router"
)

// Handler serves the gateway's HTTP endpoints.
type Handler struct {
	router *router.Router
	models []config.ModelListItem
	logger *slog.Logger
}

// NewHandler creates the endpoint handler.
func NewHandler(rt *router.Router, models []config.ModelListItem, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{router: rt, models: models, logger: logger}
}

// ChatCompletions handles POST /v1/chat/completions, unary or streaming.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CanonicalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewConfigError("invalid request body: %v", err))
		return
	}
	if req.Model == "" {
		writeError(w, domain.NewConfigError("model is required"))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, domain.NewConfigError("messages cannot be empty"))
		return
	}

	client := ClientFromContext(ctx)
	if req.User == "" {
		req.User = client
	}

	AddLogField(ctx, "model", req.Model)
	AddLogField(ctx, "client", client)

	if req.Stream {
		h.streamCompletion(w, r, &req, client)
		return
	}

	resp, err := h.router.Complete(ctx, client, &req)
	if err != nil {
		AddError(ctx, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Models handles GET /v1/models, listing the configured model catalog.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	list := domain.ModelList{Object: "list", Data: make([]domain.Model, 0, len(h.models))}
	for _, m := range h.models {
		model := domain.Model{
			ID:      m.ID,
			Object:  m.Object,
			OwnedBy: m.OwnedBy,
			Created: m.Created,
		}
		if model.Object == "" {
			model.Object = "model"
		}
		if model.OwnedBy == "" {
			model.OwnedBy = "relaygate"
		}
		if model.Created == 0 {
			model.Created = time.Now().Unix()
		}
		list.Data = append(list.Data, model)
	}
	writeJSON(w, http.StatusOK, list)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the canonical error envelope with a status derived from
// the error class.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), domain.NewErrorResponse(err))
}

func statusFor(err error) int {
	switch {
	case domain.IsConfigError(err):
		return http.StatusBadRequest
	case domain.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		var te *domain.TransportError
		if errors.As(err, &te) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
