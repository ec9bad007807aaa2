package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
)

// maxWebhookBody is the largest payload GitHub delivers (25 MB).
const maxWebhookBody = 25 << 20

type config struct {
	addr          string
	webhookSecret string
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the listen address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the secret used to verify X-Hub-Signature-256
func WithWebhookSecret(secret string) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// Server receives push and repository_dispatch deliveries for the feedstock
type Server struct {
	*http.Server
}

// NewServer builds the router. Repository webhooks post to /hooks/github and
// GitHub App webhooks post to /hooks/github/app; both share one handler.
func NewServer(
	ctx context.Context,
	webhookUC interfaces.WebhookUseCase,
	opts ...Option,
) (*Server, error) {
	cfg := &config{
		addr: "localhost:8080",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", handleHealth)

	hook := NewWebhookHandler(cfg.webhookSecret, webhookUC)
	router.Route("/hooks/github", func(r chi.Router) {
		r.Use(middleware.RequestSize(maxWebhookBody))
		r.Post("/", hook.Handle)
		r.Post("/app", hook.Handle)
	})

	return &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}, nil
}
