package httptransport

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Reecheble2022/flowswitch-verify/internal/audit"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/middleware"
)

// withAudit records every mutating API call to the trail. Reads are not
// recorded. A handler without a recorder passes through untouched.
func (h *Handler) withAudit(next http.Handler) http.Handler {
	if h.recorder == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		rec := &auditResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ctx := r.Context()
		ev := audit.Event{
			RequestID: middleware.GetRequestID(ctx),
			UserGUID:  middleware.GetUserGUID(ctx),
			Action:    actionName(r.URL.Path),
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    rec.status,
			Device:    middleware.GetDevice(ctx),
		}
		if claims := middleware.GetClaims(ctx); claims != nil {
			ev.AgentCode = claims.AgentCode
		}
		h.recorder.Record(ev)
	})
}

// handleAuditRecent returns the newest trail entries, default 50.
func (h *Handler) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if h.trail == nil {
		WriteJSON(w, http.StatusOK, []audit.Event{})
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	events, err := h.trail.Recent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit trail read failed", "error", err.Error())
		WriteError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	WriteJSON(w, http.StatusOK, events)
}

// actionName turns an API path into a stable action label, e.g.
// /api/v1/verify/notes/confirm becomes verify_notes_confirm.
func actionName(path string) string {
	p := strings.TrimPrefix(path, "/api/v1")
	p = strings.Trim(p, "/")
	if p == "" {
		return "root"
	}
	return strings.ReplaceAll(p, "/", "_")
}

type auditResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *auditResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
