package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"livepush/internal/site"

	"github.com/go-chi/chi/v5"
)

const (
	// RecentAttemptsLimit is the default number of journal entries returned
	// by the history endpoint
	RecentAttemptsLimit = 10
)

// HandleHealth reports the configured environments and their latest journal
// state
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	envNames := make([]string, 0, len(s.Config.Environments))
	for name := range s.Config.Environments {
		envNames = append(envNames, name)
	}
	sort.Strings(envNames)

	response := map[string]interface{}{
		"status":       "ok",
		"environments": envNames,
	}

	if s.Journal != nil {
		latest, err := s.Journal.GetAllEnvironmentsStatus(r.Context())
		if err != nil {
			s.Logger.Error("Failed to get environments status", "error", err)
		} else {
			response["latest_attempts"] = latest
		}
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleStatus fetches the live REVISION and PRIOR-REVISION markers from an
// environment's document root
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	envName := chi.URLParam(r, "envName")

	env, err := s.Config.Environment(envName)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	current, err := s.Site.FetchMarker(r.Context(), env.SiteURL, site.MarkerRevision)
	if err != nil {
		s.Logger.Error("Failed to fetch REVISION marker", "environment", envName, "error", err)
		s.respondJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	response := map[string]interface{}{
		"environment": envName,
		"revision":    current.String(),
	}

	// A missing prior marker is normal before the second update; report it
	// as absent rather than failing the whole request.
	prior, err := s.Site.FetchMarker(r.Context(), env.SiteURL, site.MarkerPriorRevision)
	if err != nil {
		s.Logger.Warn("Failed to fetch PRIOR-REVISION marker", "environment", envName, "error", err)
		response["prior_revision"] = nil
	} else {
		response["prior_revision"] = prior.String()
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleHistory returns recent journal entries for an environment
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	envName := chi.URLParam(r, "envName")

	if _, err := s.Config.Environment(envName); err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	if s.Journal == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Journal not available"})
		return
	}

	limit := RecentAttemptsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	latest, err := s.Journal.GetLatestDeployment(r.Context(), envName)
	if err != nil {
		s.Logger.Error("Failed to get latest attempt", "error", err, "environment", envName)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch journal"})
		return
	}

	recent, err := s.Journal.GetDeploymentHistory(r.Context(), envName, limit)
	if err != nil {
		s.Logger.Error("Failed to get journal history", "error", err, "environment", envName)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch journal"})
		return
	}

	response := map[string]interface{}{
		"environment":     envName,
		"latest_attempt":  latest,
		"recent_attempts": recent,
	}

	s.respondJSON(w, http.StatusOK, response)
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
