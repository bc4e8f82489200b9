// Package registry is the HTTP endpoint agents report their tunnel URL to.
// It keeps only the most recent registration, in memory.
package registry

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rentalagent/internal/netx"
	"rentalagent/internal/tunnel"
)

type Store struct {
	mu     sync.RWMutex
	latest *tunnel.Registration
}

func (s *Store) Set(reg tunnel.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &reg
}

func (s *Store) Latest() (tunnel.Registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return tunnel.Registration{}, false
	}
	return *s.latest, true
}

// MakeHandler returns the router serving /api/ngrok.
func MakeHandler(store *Store, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/ngrok", func(r chi.Router) {
		r.Post("/", registerHandler(store, logger))
		r.Get("/", latestHandler(store))
	})

	return r
}

func registerHandler(store *Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg tunnel.Registration
		if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
			logger.Warn("Failed to decode registration", slog.Any("error", err))
			netx.WriteBadRequest(w, "Invalid request format")
			return
		}

		if reg.NgrokURL == "" || reg.Timestamp == "" || reg.MachineID == "" {
			netx.WriteBadRequest(w, "Invalid data format. Required: ngrok_url, timestamp, machine_id")
			return
		}

		store.Set(reg)
		logger.Info("Registration stored",
			slog.String("ngrok_url", reg.NgrokURL),
			slog.String("machine_id", reg.MachineID),
			slog.String("timestamp", reg.Timestamp),
		)
		netx.WriteSuccess(w, "ngrok data stored successfully", nil)
	}
}

func latestHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := store.Latest()
		if !ok {
			netx.WriteNotFound(w, "No ngrok data available")
			return
		}
		netx.WriteJSON(w, http.StatusOK, reg)
	}
}
