// Package httphandler exposes the command surface over REST. The chat
// platform layer (out of scope here) calls these endpoints with the caller's
// identity and roles in headers, renders the returned response objects as
// rich messages, and auto-deletes transient notices after the delay the body
// reports.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ctfrelay/ctfrelay/internal/application"
)

// Handler is the HTTP driving adapter that serves the command API.
type Handler struct {
	dispatcher    *application.Dispatcher
	defaultDays   int
	retentionDays int
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(dispatcher *application.Dispatcher, defaultDays, retentionDays int, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher:    dispatcher,
		defaultDays:   defaultDays,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("GET /api/v1/events/{id}", h.EventInfo)
	mux.HandleFunc("POST /api/v1/events/{id}/credentials", h.SetCredentials)
	mux.HandleFunc("POST /api/v1/maintenance/purge", h.Purge)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// callerFrom builds the command caller from the identity headers the
// platform layer sets.
func callerFrom(r *http.Request) application.Caller {
	var roles []string
	if v := r.Header.Get("X-Caller-Roles"); v != "" {
		for _, role := range strings.Split(v, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}

	return application.Caller{
		Name:  r.Header.Get("X-Caller"),
		Roles: roles,
	}
}

// ListEvents handles GET /api/v1/events?days=N.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	days := h.defaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}

	responses, err := h.dispatcher.ListEvents(r.Context(), callerFrom(r), days, application.DefaultListFilters())
	if err != nil {
		h.writeCommandError(w, application.CommandListEvents, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponseList(responses))
}

// EventInfo handles GET /api/v1/events/{id}. The path segment may be a
// numeric id or a name; names get the documented "not implemented" notice.
func (h *Handler) EventInfo(w http.ResponseWriter, r *http.Request) {
	ref := application.ParseEventRef(r.PathValue("id"))

	responses, err := h.dispatcher.EventInfo(r.Context(), callerFrom(r), ref)
	if err != nil {
		h.writeCommandError(w, application.CommandEventInfo, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponseList(responses))
}

// setCredentialsBody is the request body for POST .../credentials.
type setCredentialsBody struct {
	TeamName     string `json:"team_name"`
	TeamPassword string `json:"team_password"`
	Overwrite    bool   `json:"overwrite"`
}

// SetCredentials handles POST /api/v1/events/{id}/credentials.
func (h *Handler) SetCredentials(w http.ResponseWriter, r *http.Request) {
	// An empty body selects the lookup-only path, so io.EOF is fine.
	var body setCredentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := application.SetCredentialsRequest{
		Identifier:   r.PathValue("id"),
		TeamName:     body.TeamName,
		TeamPassword: body.TeamPassword,
		Overwrite:    body.Overwrite,
	}

	responses, err := h.dispatcher.SetCredentials(r.Context(), callerFrom(r), req)
	if err != nil {
		h.writeCommandError(w, application.CommandSetCreds, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponseList(responses))
}

// Purge handles POST /api/v1/maintenance/purge, the forced sweep variant.
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	responses, err := h.dispatcher.PurgeOldCredentials(r.Context(), callerFrom(r), h.retentionDays)
	if err != nil {
		h.writeCommandError(w, application.CommandPurge, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponseList(responses))
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeCommandError maps a command failure to a status code and renders the
// transient notice the platform layer should show (and then delete).
func (h *Handler) writeCommandError(w http.ResponseWriter, cmd application.Command, err error) {
	status := http.StatusInternalServerError
	if cmdErr, ok := application.AsCommandError(err); ok {
		status = statusForKind(cmdErr.Kind)
	} else {
		h.logger.Error("command failed", "command", string(cmd), "error", err)
	}

	notice := application.NoticeFromError(cmd, err)
	writeJSON(w, status, noticeResponse{
		Error:              notice.Description,
		DeleteAfterSeconds: int(notice.DeleteAfter.Seconds()),
	})
}

// statusForKind maps command error kinds to HTTP status codes.
func statusForKind(kind application.ErrorKind) int {
	switch kind {
	case application.KindInvalidArgument:
		return http.StatusBadRequest
	case application.KindPermissionDenied:
		return http.StatusForbidden
	case application.KindNotFound:
		return http.StatusNotFound
	case application.KindConflict:
		return http.StatusConflict
	case application.KindUpstream, application.KindParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
