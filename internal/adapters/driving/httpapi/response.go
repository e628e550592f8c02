package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Running      bool       `json:"running"`
	Module       string     `json:"module,omitempty"`
	Page         int        `json:"page,omitempty"`
	RecordIndex  int        `json:"record_index,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastUpdateAt *time.Time `json:"last_update_at,omitempty"`
	StopPending  bool       `json:"stop_pending,omitempty"`
}

type moduleErrorResponse struct {
	Module   string `json:"module"`
	SourceID string `json:"source_id,omitempty"`
	Error    string `json:"error"`
}

type resultResponse struct {
	WindowStart string                `json:"window_start"`
	WindowEnd   string                `json:"window_end"`
	Synced      map[string]int        `json:"synced"`
	Total       int                   `json:"total"`
	Stopped     bool                  `json:"stopped"`
	Errors      []moduleErrorResponse `json:"errors"`
}

func newResultResponse(r *domain.HistoricalSyncResult) resultResponse {
	resp := resultResponse{
		WindowStart: r.Window.StartDate(),
		WindowEnd:   r.Window.EndDate(),
		Synced:      r.Synced,
		Total:       r.Total(),
		Stopped:     r.Stopped,
		Errors:      make([]moduleErrorResponse, 0, len(r.Errors)),
	}
	if resp.Synced == nil {
		resp.Synced = map[string]int{}
	}
	for _, e := range r.Errors {
		resp.Errors = append(resp.Errors, moduleErrorResponse{
			Module:   e.Module,
			SourceID: e.SourceID,
			Error:    e.Err.Error(),
		})
	}
	sort.SliceStable(resp.Errors, func(i, j int) bool {
		return resp.Errors[i].Module < resp.Errors[j].Module
	})
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("httpapi: writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("httpapi: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownModule):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrAuthRequired),
		errors.Is(err, domain.ErrTokenRefreshFailed),
		errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
