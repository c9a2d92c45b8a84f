// Package api exposes the league snapshot and relegation runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/utakatalp/relegation-odds/internal/dataset"
	"github.com/utakatalp/relegation-odds/internal/league"
	"github.com/utakatalp/relegation-odds/internal/odds"
)

// maxBodyBytes caps the size of a run request body.
const maxBodyBytes = 64 << 10

// SimulationRequest overrides the configured run settings. Unset fields keep
// the server defaults.
type SimulationRequest struct {
	Trials             *int     `json:"trials"`
	Seed               *int64   `json:"seed"`
	Chaos              *float64 `json:"chaos"`
	HomeAdvantage      *float64 `json:"home_advantage"`
	RelegationZoneSize *int     `json:"relegation_zone_size"`
	ExcludedTeams      []string `json:"excluded_teams"`
	IncludeForm        *bool    `json:"include_form"`
	StartFromTable     *bool    `json:"start_from_table"`
}

// TeamView is a team with its form string.
type TeamView struct {
	league.Team
	Form string `json:"form"`
}

// Handler serves one league snapshot.
type Handler struct {
	league    *dataset.League
	season    *league.Season
	base      odds.Config
	maxTrials int
	log       logrus.FieldLogger
}

// NewHandler validates the snapshot once so every request runs on a checked
// season.
func NewHandler(l *dataset.League, base odds.Config, maxTrials int, log logrus.FieldLogger) (*Handler, error) {
	season, err := l.Season()
	if err != nil {
		return nil, err
	}
	return &Handler{
		league:    l,
		season:    season,
		base:      base,
		maxTrials: maxTrials,
		log:       log,
	}, nil
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/teams", h.handleTeams).Methods("GET")
	r.HandleFunc("/teams/{name}", h.handleTeam).Methods("GET")
	r.HandleFunc("/fixtures", h.handleFixtures).Methods("GET")
	r.HandleFunc("/simulations", h.handleSimulate).Methods("POST")
	r.HandleFunc("/comparisons", h.handleCompare).Methods("POST")

	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
		h.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"elapsed":    time.Since(start),
		}).Debug("request served")
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"league":   h.league.Name,
		"teams":    len(h.league.Teams),
		"fixtures": len(h.league.Fixtures),
	})
}

func (h *Handler) handleTeams(w http.ResponseWriter, r *http.Request) {
	views := make([]TeamView, 0, len(h.league.Teams))
	for _, t := range h.league.Teams {
		views = append(views, TeamView{Team: t, Form: h.league.FormString(t.Name)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleTeam(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	i, ok := h.season.Index(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown team %q", name))
		return
	}
	t := h.season.Teams()[i]
	writeJSON(w, http.StatusOK, TeamView{Team: t, Form: h.league.FormString(t.Name)})
}

func (h *Handler) handleFixtures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.season.Fixtures())
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.runConfig(w, r)
	if !ok {
		return
	}
	sim, err := odds.New(h.season, cfg, h.log)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	res, err := sim.Run(r.Context())
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.runConfig(w, r)
	if !ok {
		return
	}
	cmp, err := odds.Compare(r.Context(), h.season, cfg, h.log)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// runConfig applies the request body to the server defaults. It writes the
// error response itself and reports whether the caller should continue.
func (h *Handler) runConfig(w http.ResponseWriter, r *http.Request) (odds.Config, bool) {
	cfg := h.base
	cfg.Excluded = append([]string(nil), h.base.Excluded...)

	var req SimulationRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
			return cfg, false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return cfg, false
	}

	if req.Trials != nil {
		cfg.Trials = *req.Trials
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Chaos != nil {
		cfg.Match.Chaos = *req.Chaos
	}
	if req.HomeAdvantage != nil {
		cfg.Match.HomeAdvantage = *req.HomeAdvantage
	}
	if req.RelegationZoneSize != nil {
		cfg.RelegationZoneSize = *req.RelegationZoneSize
	}
	if req.ExcludedTeams != nil {
		cfg.Excluded = req.ExcludedTeams
	}
	if req.IncludeForm != nil {
		cfg.IgnoreForm = !*req.IncludeForm
	}
	if req.StartFromTable != nil {
		cfg.StartFromTable = *req.StartFromTable
	}

	if cfg.Trials > h.maxTrials {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("trials must be at most %d", h.maxTrials))
		return cfg, false
	}
	return cfg, true
}

func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	var invalid *league.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "simulation cancelled")
	default:
		h.log.WithError(err).Error("simulation failed")
		writeError(w, http.StatusInternalServerError, "simulation failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
