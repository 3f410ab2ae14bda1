package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/predatorx7/logtopus/pkg/auth"
	"github.com/predatorx7/logtopus/pkg/broker"
)

// NewRouter wires the collector routes. /v1/logs requires an API key.
func NewRouter(b broker.Broker, h *Handler, verify auth.Verifier) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/status", HandleStatus(b))
	r.With(auth.Middleware(verify)).Post("/v1/logs", h.HandleLogs)
	return r
}
