package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Reecheble2022/flowswitch-verify/internal/platform/middleware"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

// handleLocationReport answers where the named agent operates from.
func (h *Handler) handleLocationReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	profiles, err := h.agents.AgentsByCode(ctx, code)
	if err != nil {
		h.logger.ErrorContext(ctx, "agent lookup failed for location report",
			"request_id", middleware.GetRequestID(ctx),
			"agent_code", code,
			"error", err.Error(),
		)
		WriteError(w, err)
		return
	}
	if len(profiles) == 0 {
		WriteError(w, verrs.New(verrs.CodeNotFound, "Agent not found. Please check the agent code."))
		return
	}

	text, err := h.analyst.AgentLocationReport(ctx, profiles[0])
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"agentCode": code,
		"report":    text,
	})
}
