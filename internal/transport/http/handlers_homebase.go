package httptransport

import (
	"net/http"

	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

type attachPhotoRequest struct {
	// ImageDataURL carries the photo as a data: URL, the format picked
	// files arrive in.
	ImageDataURL string `json:"imageDataUrl"`
	Filename     string `json:"filename"`
}

func (h *Handler) handleHomebaseState(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.host.Homebase().Snapshot())
}

func (h *Handler) handleHomebasePrompt(w http.ResponseWriter, _ *http.Request) {
	h.host.TriggerHomeVerificationPrompt()
	WriteJSON(w, http.StatusOK, h.host.Homebase().Snapshot())
}

func (h *Handler) handleHomebaseAffirm(w http.ResponseWriter, _ *http.Request) {
	h.host.Homebase().Affirm()
	WriteJSON(w, http.StatusOK, h.host.Homebase().Snapshot())
}

func (h *Handler) handleHomebaseDecline(w http.ResponseWriter, r *http.Request) {
	h.host.Homebase().Decline(r.Context())
	WriteJSON(w, http.StatusOK, h.host.Homebase().Snapshot())
}

// handleHomebasePhoto attaches a picked photo as the location proof.
func (h *Handler) handleHomebasePhoto(w http.ResponseWriter, r *http.Request) {
	var req attachPhotoRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	frame, err := capture.ParseDataURL(req.ImageDataURL)
	if err != nil {
		WriteError(w, verrs.Wrap(err, verrs.CodeInput, "invalid image payload"))
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = "selfie.jpg"
	}
	if err := h.host.Homebase().AttachPhoto(r.Context(), frame, filename); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.host.Homebase().Snapshot())
}

// handleHomebaseSelfie takes a live still through the camera port.
func (h *Handler) handleHomebaseSelfie(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if !h.feedFrame(w, req.ImageDataURL) {
		return
	}
	if err := h.host.Homebase().CaptureSelfie(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.host.Homebase().Snapshot())
}

type confirmLocationRequest struct {
	// The device fix rides along when the deployment has no server-side
	// locator.
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handler) handleHomebaseConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmLocationRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if h.fixes != nil && req.Latitude != nil && req.Longitude != nil {
		h.fixes.Report(identity.Coordinates{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
		})
	}
	if err := h.host.Homebase().ConfirmLocation(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.host.Homebase().Snapshot())
}

func (h *Handler) handleHomebaseCancel(w http.ResponseWriter, r *http.Request) {
	h.host.Homebase().Cancel(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
