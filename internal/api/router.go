package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(hub *Hub, ingest *Ingest, history *History) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Websocket surfaces
	r.Get("/ws/captions", hub.ServeCaptions)
	r.Get("/ws/ingest/{meetingID}", ingest.ServeIngest)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/captions/{meetingID}", history.ServeHistory)
	})

	return r
}
