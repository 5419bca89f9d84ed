package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := verrs.CodeOf(err)
	WriteJSON(w, verrs.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": verrs.UserMessage(err),
	})
}

// feedFrame pushes an inline image payload to the frame queue, when both
// are present. Reports false only when the payload is unusable.
func (h *Handler) feedFrame(w http.ResponseWriter, dataURL string) bool {
	if dataURL == "" || h.frames == nil {
		return true
	}
	frame, err := capture.ParseDataURL(dataURL)
	if err != nil {
		WriteError(w, verrs.Wrap(err, verrs.CodeInput, "invalid image payload"))
		return false
	}
	h.frames.Push(frame)
	return true
}

// decodeJSON decodes the request body into dst. An empty body is fine; any
// other decode failure is reported to the client as bad input.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "invalid request body",
				"path", r.URL.Path,
				"error", err.Error(),
			)
		}
		WriteError(w, verrs.New(verrs.CodeInput, "invalid request body"))
		return false
	}
	return true
}
