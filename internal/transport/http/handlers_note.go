package httptransport

import (
	"net/http"

	"github.com/Reecheble2022/flowswitch-verify/internal/platform/middleware"
	"github.com/Reecheble2022/flowswitch-verify/internal/session/note"
)

type startNoteRequest struct {
	TotalAmount string `json:"totalAmount"`
	AgentCode   string `json:"agentCode"`
}

type subjectRequest struct {
	AgentCode string `json:"agentCode"`
}

// handleNoteStart opens (or restarts) a cash-note session. A preset agent
// code of sufficient length validates immediately.
func (h *Handler) handleNoteStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req startNoteRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	err := h.host.StartNoteVerification(ctx, note.StartOptions{
		TotalAmount: req.TotalAmount,
		SubjectCode: req.AgentCode,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "note session start rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.host.Notes().Snapshot())
}

func (h *Handler) handleNoteState(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.host.Notes().Snapshot())
}

// handleNoteSubjectCheck validates the agent code without advancing.
func (h *Handler) handleNoteSubjectCheck(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if err := h.host.Notes().ValidateSubject(r.Context(), req.AgentCode); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.host.Notes().Snapshot())
}

// handleNoteSubjectProceed validates if needed and moves on to capture.
func (h *Handler) handleNoteSubjectProceed(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if err := h.host.Notes().Proceed(r.Context(), req.AgentCode); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.host.Notes().Snapshot())
}

type captureRequest struct {
	// ImageDataURL optionally carries the frame inline for deployments
	// without a server-side camera.
	ImageDataURL string `json:"imageDataUrl"`
}

func (h *Handler) handleNoteCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if !h.feedFrame(w, req.ImageDataURL) {
		return
	}
	if err := h.host.Notes().CaptureNote(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.host.Notes().Snapshot())
}

func (h *Handler) handleNoteRetake(w http.ResponseWriter, _ *http.Request) {
	h.host.Notes().Retake()
	WriteJSON(w, http.StatusOK, h.host.Notes().Snapshot())
}

func (h *Handler) handleNoteConfirm(w http.ResponseWriter, r *http.Request) {
	if err := h.host.Notes().ConfirmNote(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.host.Notes().Snapshot())
}

func (h *Handler) handleNoteFinish(w http.ResponseWriter, r *http.Request) {
	count, err := h.host.Notes().Finish(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"loggedCount": count})
}

func (h *Handler) handleNoteCancel(w http.ResponseWriter, r *http.Request) {
	h.host.Notes().Cancel(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
