// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package api

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/ingest"
	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/metrics"
	"github.com/gymtrack/gymtrackd/internal/models"
	"github.com/gymtrack/gymtrackd/internal/rollup"
)

// maxBodyBytes caps request bodies; payloads here are tiny.
const maxBodyBytes = 1 << 20

// summaryCacheSeconds is the Cache-Control max-age for the summary view.
const summaryCacheSeconds = 300

// Ingestor runs the dedup gate; satisfied by *ingest.Ingestor.
type Ingestor interface {
	Ingest(ctx context.Context, n *ingest.Normalized, rawPayload string) (*models.IngestResult, error)
}

// SummaryAssembler builds the summary; satisfied by *rollup.Assembler.
type SummaryAssembler interface {
	Assemble(ctx context.Context, p rollup.SummaryParams, now time.Time) (*models.Summary, error)
}

// ManualStore persists overrides; satisfied by *database.DB.
type ManualStore interface {
	UpsertManualEntry(ctx context.Context, e *models.ManualEntry) error
}

// RollupComputer recomputes one date; satisfied by *rollup.Computer.
type RollupComputer interface {
	ComputeAndStore(ctx context.Context, date string, now time.Time, trigger string) (*models.DailyRollup, error)
}

// JobRunner triggers a maintenance pass; satisfied by
// *scheduler.MaintenanceJob.
type JobRunner interface {
	Run(ctx context.Context) (*models.JobRunResult, error)
}

// StravaAuthorizer completes the OAuth flow; satisfied by *strava.Client.
type StravaAuthorizer interface {
	ExchangeCode(ctx context.Context, code string) error
}

// CyclingSyncer runs a cycling sync; satisfied by *strava.Syncer.
// weeksBack < 1 means the configured default window.
type CyclingSyncer interface {
	Sync(ctx context.Context, now time.Time, weeksBack int) (int, error)
}

// HealthStore is the store slice health checks probe.
type HealthStore interface {
	Ping(ctx context.Context) error
	CountOpenVisits(ctx context.Context) (int, error)
}

// Handlers bundles the endpoint implementations and their dependencies.
// Strava fields are nil when the integration is disabled; the routes then
// answer 404.
type Handlers struct {
	ingestor   Ingestor
	assembler  SummaryAssembler
	manual     ManualStore
	computer   RollupComputer
	job        JobRunner
	strava     StravaAuthorizer
	syncer     CyclingSyncer
	health     HealthStore
	writeToken string
	validate   *validator.Validate
}

// NewHandlers builds the handler set. strava and syncer may be nil.
func NewHandlers(
	ingestor Ingestor,
	assembler SummaryAssembler,
	manual ManualStore,
	computer RollupComputer,
	job JobRunner,
	health HealthStore,
	cfg *config.Config,
	strava StravaAuthorizer,
	syncer CyclingSyncer,
) *Handlers {
	return &Handlers{
		ingestor:   ingestor,
		assembler:  assembler,
		manual:     manual,
		computer:   computer,
		job:        job,
		strava:     strava,
		syncer:     syncer,
		health:     health,
		writeToken: cfg.Auth.WriteToken,
		validate:   validator.New(),
	}
}

// IngestGeofency handles POST /ingest/geofency: JSON or form-encoded
// webhook bodies, deduplicated and sessionized.
func (h *Handlers) IngestGeofency(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable request body", nil)
		return
	}

	var payload *ingest.Payload
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed form body", nil)
			return
		}
		payload = ingest.ParseForm(r.PostForm)
	} else {
		payload, err = ingest.ParseJSON(body)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}

	normalized, err := payload.Normalize()
	if err != nil {
		metrics.IngestResults.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), normalized, string(body))
	if err != nil {
		logging.Error().Err(err).Msg("Ingest failed")
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "event could not be stored", nil)
		return
	}

	status := http.StatusCreated
	if result.Status == "duplicate" {
		status = http.StatusOK
	}
	respondJSON(w, status, result, started)
}

// GymSummary handles GET /gym/summary. The response is a pure derived view,
// marked cacheable for a few minutes.
func (h *Handlers) GymSummary(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()

	params := rollup.SummaryParams{
		Mode:      models.ProgressMode(q.Get("mode")),
		StartDate: q.Get("start_date"),
	}
	if params.Mode != "" && !params.Mode.Valid() {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"mode must be weekly or monthly", nil)
		return
	}
	if raw := q.Get("target"); raw != "" {
		target, err := strconv.Atoi(raw)
		if err != nil || target < 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "target must be a non-negative integer", nil)
			return
		}
		params.Target = target
	}
	if raw := q.Get("weeks"); raw != "" {
		weeks, err := strconv.Atoi(raw)
		if err != nil || weeks < 1 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "weeks must be a positive integer", nil)
			return
		}
		params.Weeks = weeks
	}

	summary, err := h.assembler.Assemble(r.Context(), params, time.Now())
	if err != nil {
		logging.Error().Err(err).Msg("Summary assembly failed")
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "summary could not be built", nil)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(summaryCacheSeconds))
	respondJSON(w, http.StatusOK, summary, started)
}

// GymManual handles POST /gym/manual: a batch of (date, status) overrides,
// validated before any row is written, each followed by a rollup recompute
// so the override is visible immediately.
func (h *Handlers) GymManual(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var entries []models.ManualEntry
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&entries); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "body must be a JSON array of entries", nil)
		return
	}
	if len(entries) == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at least one entry required", nil)
		return
	}

	for i := range entries {
		if err := h.validate.Struct(&entries[i]); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"invalid entry at index "+strconv.Itoa(i), err.Error())
			return
		}
	}

	now := time.Now()
	for i := range entries {
		if err := h.manual.UpsertManualEntry(r.Context(), &entries[i]); err != nil {
			logging.Error().Err(err).Str("date", entries[i].Date).Msg("Manual entry upsert failed")
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "entry could not be stored", nil)
			return
		}
		if _, err := h.computer.ComputeAndStore(r.Context(), entries[i].Date, now, "manual"); err != nil {
			logging.Error().Err(err).Str("date", entries[i].Date).Msg("Rollup recompute after override failed")
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "rollup recompute failed", nil)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]int{"applied": len(entries)}, started)
}

// StravaCallback handles GET /strava/callback, the OAuth redirect target.
// Redirects cannot carry auth headers, so the state parameter must echo the
// write token.
func (h *Handlers) StravaCallback(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if h.strava == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "strava integration disabled", nil)
		return
	}

	q := r.URL.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "authorization denied: "+errMsg, nil)
		return
	}
	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(h.writeToken)) != 1 {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid state parameter", nil)
		return
	}
	code := q.Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing code parameter", nil)
		return
	}

	if err := h.strava.ExchangeCode(r.Context(), code); err != nil {
		logging.Error().Err(err).Msg("Strava code exchange failed")
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "token exchange failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "authorized"}, started)
}

// StravaSync handles POST /strava/sync, a manual cycling sync trigger.
// An optional JSON body {"weeksBack": n} widens or narrows the window for
// this run; omitted, the configured window applies.
func (h *Handlers) StravaSync(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if h.syncer == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "strava integration disabled", nil)
		return
	}

	weeksBack := 0
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable request body", nil)
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		var req struct {
			WeeksBack int `json:"weeksBack"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "body must be JSON with an optional weeksBack field", nil)
			return
		}
		if req.WeeksBack < 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "weeksBack must not be negative", nil)
			return
		}
		weeksBack = req.WeeksBack
	}

	weeks, err := h.syncer.Sync(r.Context(), time.Now(), weeksBack)
	if err != nil {
		logging.Error().Err(err).Msg("Manual cycling sync failed")
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "cycling sync failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"weeks_synced": weeks}, started)
}

// JobsRun handles POST /api/v1/jobs/run, the manual maintenance trigger.
func (h *Handlers) JobsRun(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	result, err := h.job.Run(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Manual maintenance run failed")
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "maintenance run failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, result, started)
}

// Health handles GET /health: store reachability plus the open-visit count.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if err := h.health.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR", "database unreachable", nil)
		return
	}

	open, err := h.health.CountOpenVisits(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR", "database unreachable", nil)
		return
	}
	metrics.OpenVisits.Set(float64(open))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"open_visits": open,
	}, started)
}
