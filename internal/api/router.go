package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/history"
	"github.com/nerrad567/toio-bridge/internal/telemetry"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/cubes", s.handleListCubes)
			r.Get("/cubes/{id}/positions", s.handlePositionHistory)
			r.Get("/sessions", s.handleListSessions)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          telemetry.HealthHealthy,
			"version":         s.version,
			"connected_cubes": len(s.cubes.Sessions()),
		})
		return
	}

	msg := s.health.Snapshot(r.Context())
	status := http.StatusOK
	if msg.Status == telemetry.HealthDegraded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, msg)
}

func (s *Server) handleListCubes(w http.ResponseWriter, _ *http.Request) {
	sessions := s.cubes.Sessions()
	if sessions == nil {
		sessions = []cube.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cubes": sessions,
		"count": len(sessions),
	})
}

func (s *Server) handlePositionHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "session journal is disabled")
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	records, err := s.journal.PositionHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("reading position history", "cube_id", id, "error", err)
		writeInternalError(w, "failed to read position history")
		return
	}
	if records == nil {
		records = []history.PositionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cube_id":   id,
		"positions": records,
		"count":     len(records),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "session journal is disabled")
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	records, err := s.journal.ListSessions(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing sessions", "error", err)
		writeInternalError(w, "failed to list sessions")
		return
	}
	if records == nil {
		records = []history.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": records,
		"count":    len(records),
	})
}

// limitParam parses the optional ?limit= query parameter. Zero means the
// journal default; the journal also applies its own cap.
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}
