// Package server exposes the gateway over HTTP: the chat-completions
// frontdoor (unary JSON or SSE), the model listing, and health.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/relaygate/relaygate/internal/auth"
)

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

// New assembles the HTTP router. Health stays outside the auth boundary so
// probes never need credentials.
func New(port int, logger *slog.Logger, authenticator *auth.Authenticator, h *Handler) *Server {
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "relaygate")
	})

	r.Get("/healthz", h.Health)

	r.Group(func(gr chi.Router) {
		if authenticator != nil && authenticator.Enabled() {
			gr.Use(AuthMiddleware(authenticator))
		}

		gr.Post("/v1/chat/completions", h.ChatCompletions)
		gr.With(TimeoutMiddleware(30 * time.Second)).Get("/v1/models", h.Models)
	})

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
