// Package httpapi serves the blinds and their scheduled actions over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edgard/smartblinds/internal/alarm"
	"github.com/edgard/smartblinds/internal/database"
	"github.com/edgard/smartblinds/internal/errs"
	"github.com/edgard/smartblinds/internal/schedule"
)

// ActionService is the part of the alarm service the API drives.
type ActionService interface {
	CreateAction(ctx context.Context, weekday schedule.Weekday, tod schedule.TimeOfDay, open bool) (*database.Action, error)
	DeleteAction(ctx context.Context, id int64) (bool, error)
	ListActions(ctx context.Context) ([]alarm.ScheduledAction, error)
	NextRun(id int64) (time.Time, bool)
}

// Blinds is the manual control surface of the blinds.
type Blinds interface {
	IsOpen() bool
	LastAction() (time.Time, bool)
	Move(ctx context.Context, open bool) (bool, error)
	Toggle(ctx context.Context) (bool, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type statusResponse struct {
	Open       bool       `json:"open"`
	LastAction *time.Time `json:"last_action,omitempty"`
}

type actionRequest struct {
	Weekday string `json:"weekday"`
	Time    string `json:"time"`
	Open    *bool  `json:"open"`
}

type actionResponse struct {
	ID      int64     `json:"id"`
	Weekday string    `json:"weekday"`
	Time    string    `json:"time"`
	Open    bool      `json:"open"`
	NextRun time.Time `json:"next_run"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newActionResponse(a database.Action, next time.Time) actionResponse {
	return actionResponse{
		ID:      a.ID,
		Weekday: a.Weekday.Short(),
		Time:    a.Time.String(),
		Open:    a.Open,
		NextRun: next,
	}
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.statusBody())
}

func (h *handlers) statusBody() statusResponse {
	resp := statusResponse{Open: h.deps.Blinds.IsOpen()}
	if last, ok := h.deps.Blinds.LastAction(); ok {
		resp.LastAction = &last
	}
	return resp
}

func (h *handlers) toggle(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.Blinds.Toggle(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.statusBody())
}

func (h *handlers) move(open bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.deps.Blinds.Move(r.Context(), open); err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h.statusBody())
	}
}

func (h *handlers) listActions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opContext(r.Context())
	defer cancel()

	actions, err := h.deps.Service.ListActions(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]actionResponse, 0, len(actions))
	for _, a := range actions {
		out = append(out, newActionResponse(a.Action, a.NextRun))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) createAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, errs.NewValidationError("malformed request body", err))
		return
	}

	weekday, err := schedule.ParseWeekday(req.Weekday)
	if err != nil {
		h.fail(w, r, errs.NewValidationError(err.Error(), err))
		return
	}
	tod, err := schedule.ParseTimeOfDay(req.Time)
	if err != nil {
		h.fail(w, r, errs.NewValidationError(err.Error(), err))
		return
	}
	if req.Open == nil {
		h.fail(w, r, errs.NewValidationError(`field "open" is required`, nil))
		return
	}

	ctx, cancel := h.opContext(r.Context())
	defer cancel()

	action, err := h.deps.Service.CreateAction(ctx, weekday, tod, *req.Open)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	next, ok := h.deps.Service.NextRun(action.ID)
	if !ok {
		// Deleted again before we got here.
		next = action.NextOccurrence(h.deps.Clock.Now())
	}
	writeJSON(w, http.StatusCreated, newActionResponse(*action, next))
}

func (h *handlers) deleteAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, errs.NewValidationError("action id must be a positive integer", err))
		return
	}

	ctx, cancel := h.opContext(r.Context())
	defer cancel()

	removed, err := h.deps.Service.DeleteAction(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "action not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := h.opContext(r.Context())
	defer cancel()

	if err := h.deps.Store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.deps.OperationTimeout > 0 {
		return context.WithTimeout(ctx, h.deps.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

// fail maps err onto a status code and writes it as a JSON error.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.DebugContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	msg := err.Error()
	if status == http.StatusConflict {
		msg = "an action already exists at that weekday and time"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errs.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}
