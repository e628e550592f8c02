package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Principal headers.
const (
	HeaderUser = "X-Ledgersync-User"
	HeaderOrg  = "X-Ledgersync-Org"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the admin API.
type Handler struct {
	historical driving.HistoricalSync
	settings   driving.SettingsService
	modules    driven.ModuleRegistry
	cache      func(desc driven.EntityDescriptor) driving.CacheRepository

	// base outlives requests; background syncs run under it.
	base context.Context
	wg   sync.WaitGroup
}

// NewHandler creates a handler. Background syncs started through the API
// are cancelled when base is done. settings and cache may be nil.
func NewHandler(
	base context.Context,
	historical driving.HistoricalSync,
	settings driving.SettingsService,
	modules driven.ModuleRegistry,
	cache func(desc driven.EntityDescriptor) driving.CacheRepository,
) *Handler {
	return &Handler{
		historical: historical,
		settings:   settings,
		modules:    modules,
		cache:      cache,
		base:       base,
	}
}

// Router returns the routes mounted on a gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequests)

	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/v1/sync/historical", h.HandleStartHistorical).Methods(http.MethodPost)
	router.HandleFunc("/v1/sync/stop", h.HandleStop).Methods(http.MethodPost)
	router.HandleFunc("/v1/sync/status", h.HandleStatus).Methods(http.MethodGet)
	router.HandleFunc("/v1/sync/latest", h.HandleLatest).Methods(http.MethodGet)
	router.HandleFunc("/v1/records/{module}/{id}", h.HandleGetRecord).Methods(http.MethodGet)

	return router
}

// Wait blocks until background syncs started by the handler have returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// HistoricalRequest is the body of POST /v1/sync/historical.
type HistoricalRequest struct {
	WindowDays int      `json:"window_days"`
	Modules    []string `json:"modules"`
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStartHistorical handles POST /v1/sync/historical.
// The sync runs in the background unless ?wait=true is given, in which
// case the response carries the result.
func (h *Handler) HandleStartHistorical(w http.ResponseWriter, r *http.Request) {
	var req HistoricalRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: decoding body: %v", domain.ErrInvalidInput, err))
			return
		}
	}

	if req.WindowDays < 0 {
		writeError(w, fmt.Errorf("%w: window_days must be positive", domain.ErrInvalidInput))
		return
	}
	if req.WindowDays == 0 {
		req.WindowDays = h.defaultWindow()
	}
	if h.modules != nil {
		if _, err := h.modules.Resolve(req.Modules); err != nil {
			writeError(w, err)
			return
		}
	}

	principal := principalFrom(r)
	if r.URL.Query().Get("wait") == "true" {
		result, err := h.historical.SyncRecentTransactions(r.Context(), req.WindowDays, req.Modules, principal)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newResultResponse(result))
		return
	}

	h.wg.Add(1)
	err := h.historical.StartRecentTransactions(h.base, req.WindowDays, req.Modules, principal,
		func(result *domain.HistoricalSyncResult, err error) {
			defer h.wg.Done()
			if err != nil {
				logger.Warn("httpapi: historical sync for %s: %v", principal.Key(), err)
				return
			}
			logger.Info("httpapi: historical sync for %s synced %d records", principal.Key(), result.Total())
		})
	if err != nil {
		h.wg.Done()
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "started",
		"principal":   principal.Key(),
		"window_days": req.WindowDays,
		"modules":     req.Modules,
	})
}

// HandleStop handles POST /v1/sync/stop.
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	accepted := h.historical.RequestStop(principalFrom(r))
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

// HandleStatus handles GET /v1/sync/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := h.historical.Status(principalFrom(r))
	if !ok {
		writeJSON(w, http.StatusOK, statusResponse{Running: false})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Running:      true,
		Module:       status.Module,
		Page:         status.Page,
		RecordIndex:  status.RecordIndex,
		StartedAt:    timePtr(status.StartedAt),
		LastUpdateAt: timePtr(status.LastUpdateAt),
		StopPending:  status.StopPending,
	})
}

// HandleLatest handles GET /v1/sync/latest.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.historical.LatestSyncTimestamps(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// HandleGetRecord handles GET /v1/records/{module}/{id}.
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil || h.modules == nil {
		writeError(w, fmt.Errorf("%w: record lookup", domain.ErrNotFound))
		return
	}

	vars := mux.Vars(r)
	desc, err := h.modules.Lookup(vars["module"])
	if err != nil {
		writeError(w, err)
		return
	}

	id := strings.TrimSpace(vars["id"])
	opts := driving.GetOptions{ForceRefresh: r.URL.Query().Get("force") == "true"}
	rec, err := h.cache(desc).GetByID(r.Context(), id, principalFrom(r), opts)
	if rec == nil {
		if err == nil {
			err = fmt.Errorf("%s %s: %w", desc.Module(), id, domain.ErrNotFound)
		}
		writeError(w, err)
		return
	}
	if err != nil {
		logger.Warn("httpapi: %s %s served uncached: %v", desc.Module(), id, err)
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) defaultWindow() int {
	if h.settings != nil {
		if s, err := h.settings.Get(); err == nil && s.Sync.WindowDays > 0 {
			return s.Sync.WindowDays
		}
	}
	return domain.DefaultSettings().Sync.WindowDays
}

// principalFrom reads the principal headers. Returns nil, the system
// principal, when neither is set.
func principalFrom(r *http.Request) *domain.Principal {
	user := strings.TrimSpace(r.Header.Get(HeaderUser))
	org := strings.TrimSpace(r.Header.Get(HeaderOrg))
	if user == "" && org == "" {
		return nil
	}
	return &domain.Principal{UserID: user, OrganizationID: org}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("httpapi: %s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
