// Package httptransport is the thin HTTP layer over the verification
// sessions. Handlers delegate to the session engines without embedding
// business logic so transport concerns remain isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Reecheble2022/flowswitch-verify/internal/audit"
	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/middleware"
	"github.com/Reecheble2022/flowswitch-verify/internal/report"
	"github.com/Reecheble2022/flowswitch-verify/internal/session"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

// AgentDirectory resolves agent records for user bootstrap and reports.
type AgentDirectory interface {
	AgentsByCode(ctx context.Context, code string) ([]identity.AgentProfile, error)
}

// Handler wires the verification endpoints to the session host.
type Handler struct {
	host      *session.Host
	users     *identity.Holder
	agents    AgentDirectory
	analyst   *report.Analyst
	validator middleware.JWTValidator
	logger    *slog.Logger

	// Device feeds. Headless deployments receive frames and position
	// fixes in request payloads; these push them to the sensor ports.
	frames *capture.FrameQueue
	fixes  *capture.FixStore

	// Audit trail, optional.
	recorder *audit.Recorder
	trail    audit.Store
}

// Option configures a Handler.
type Option func(*Handler)

// WithFrameFeed lets capture endpoints accept an inline image payload.
func WithFrameFeed(q *capture.FrameQueue) Option {
	return func(h *Handler) { h.frames = q }
}

// WithFixFeed lets the location confirm endpoint accept inline coordinates.
func WithFixFeed(s *capture.FixStore) Option {
	return func(h *Handler) { h.fixes = s }
}

// WithAudit records mutating API calls to the trail and exposes it for
// reading.
func WithAudit(recorder *audit.Recorder, trail audit.Store) Option {
	return func(h *Handler) {
		h.recorder = recorder
		h.trail = trail
	}
}

func New(
	host *session.Host,
	users *identity.Holder,
	agents AgentDirectory,
	analyst *report.Analyst,
	validator middleware.JWTValidator,
	logger *slog.Logger,
	opts ...Option) *Handler {
	h := &Handler{
		host:      host,
		users:     users,
		agents:    agents,
		analyst:   analyst,
		validator: validator,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter builds the full route tree: public health and metrics
// endpoints, and the authenticated verification API under /api/v1.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Device)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(h.validator, h.logger))
		api.Use(h.withCurrentUser)
		api.Use(h.withAudit)

		api.Route("/verify/notes", func(nr chi.Router) {
			nr.Get("/", h.handleNoteState)
			nr.Post("/", h.handleNoteStart)
			nr.Delete("/", h.handleNoteCancel)
			nr.Post("/subject/check", h.handleNoteSubjectCheck)
			nr.Post("/subject/proceed", h.handleNoteSubjectProceed)
			nr.Post("/capture", h.handleNoteCapture)
			nr.Post("/retake", h.handleNoteRetake)
			nr.Post("/confirm", h.handleNoteConfirm)
			nr.Post("/finish", h.handleNoteFinish)
		})

		api.Route("/verify/homebase", func(hr chi.Router) {
			hr.Get("/", h.handleHomebaseState)
			hr.Post("/prompt", h.handleHomebasePrompt)
			hr.Post("/affirm", h.handleHomebaseAffirm)
			hr.Post("/decline", h.handleHomebaseDecline)
			hr.Post("/photo", h.handleHomebasePhoto)
			hr.Post("/selfie", h.handleHomebaseSelfie)
			hr.Post("/confirm", h.handleHomebaseConfirm)
			hr.Delete("/", h.handleHomebaseCancel)
		})

		api.Get("/agents/{code}/location-report", h.handleLocationReport)
		api.Get("/audit/recent", h.handleAuditRecent)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withCurrentUser bootstraps the cached user record from the validated JWT
// claims. The agent profile lookup degrades gracefully: a failed directory
// call logs in as a plain user rather than failing the request.
func (h *Handler) withCurrentUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := middleware.GetClaims(ctx)
		if claims == nil {
			WriteError(w, verrs.New(verrs.CodeUnauthorized, "authentication required"))
			return
		}
		if u, ok := h.users.Get(); !ok || u.GUID != claims.UserGUID {
			h.users.Set(h.bootstrapUser(ctx, claims))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) bootstrapUser(ctx context.Context, claims *middleware.JWTClaims) identity.User {
	u := identity.User{
		GUID:  claims.UserGUID,
		Email: claims.Email,
	}
	if claims.AgentCode == "" {
		return u
	}
	profiles, err := h.agents.AgentsByCode(ctx, claims.AgentCode)
	if err != nil {
		h.logger.WarnContext(ctx, "agent profile lookup failed during bootstrap",
			"request_id", middleware.GetRequestID(ctx),
			"agent_code", claims.AgentCode,
			"error", err.Error(),
		)
		return u
	}
	for i := range profiles {
		if profiles[i].GUID == claims.AgentGUID {
			u.Agent = &profiles[i]
			return u
		}
	}
	if len(profiles) == 1 {
		u.Agent = &profiles[0]
	}
	return u
}
