// Package homebase implements the home-base location verification session:
// a prompt asking the agent whether they are at their registered base, an
// identity photo (live selfie or upload), a single geolocation capture, and
// one confirmation call that optimistically updates the cached user record.
package homebase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
	"github.com/Reecheble2022/flowswitch-verify/internal/gateway"
	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/metrics"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

// Status tags the session state.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusPrompted      Status = "prompted"
	StatusAwaitingProof Status = "awaiting_proof"
	StatusProofCaptured Status = "proof_captured"
	StatusConfirming    Status = "confirming"
	// StatusLogged marks the instant of a successful confirmation in audit
	// logs; the machine itself rests in Idle afterwards.
	StatusLogged Status = "logged"
)

// Gateway is the slice of the Remote Gateway this session consumes.
type Gateway interface {
	UploadLocationPhoto(ctx context.Context, frame capture.Frame, filename string) (*gateway.UploadResult, error)
	VerifyAgentLocation(ctx context.Context, agentGUID string, up gateway.LocationUpdate) error
}

// Session is the home-base verification state machine. The prompt fires at
// most once per mounted lifetime unless re-armed by Reset or a manual
// trigger.
type Session struct {
	mu         sync.Mutex
	status     Status
	generation uuid.UUID
	prompted   bool
	preview    *capture.Frame
	photoURL   string
	lastErr    error
	busy       bool

	gw          Gateway
	camera      capture.Camera
	locator     capture.Locator
	users       *identity.Holder
	geoTimeout  time.Duration
	promptDelay time.Duration
	required    int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithGeolocationTimeout bounds the coordinate acquisition.
func WithGeolocationTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.geoTimeout = d
		}
	}
}

// WithPromptDelay sets how long after eligibility the automatic prompt
// waits before showing.
func WithPromptDelay(d time.Duration) Option {
	return func(s *Session) { s.promptDelay = d }
}

// WithRequiredVerifications sets how many prior proofs exempt an agent from
// the automatic prompt.
func WithRequiredVerifications(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.required = n
		}
	}
}

func New(gw Gateway, camera capture.Camera, locator capture.Locator, users *identity.Holder, opts ...Option) *Session {
	s := &Session{
		status:      StatusIdle,
		generation:  uuid.New(),
		gw:          gw,
		camera:      camera,
		locator:     locator,
		users:       users,
		geoTimeout:  5 * time.Second,
		promptDelay: 6 * time.Second,
		required:    4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Eligible reports whether the automatic prompt should fire for this user:
// an agent whose location is unverified or who has fewer than the required
// number of prior proofs, and who has not already been prompted this mount.
func (s *Session) Eligible(u identity.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligibleLocked(u)
}

func (s *Session) eligibleLocked(u identity.User) bool {
	if s.prompted || u.Agent == nil {
		return false
	}
	return !u.Agent.LocationVerified || len(u.Agent.Verifications) < s.required
}

// EvaluatePrompt re-checks eligibility for the (possibly new) current user
// and schedules the automatic prompt after the configured delay. Idempotent
// and skip-safe: it never re-shows the prompt after a decline within one
// mounted lifetime.
func (s *Session) EvaluatePrompt(u identity.User) {
	s.mu.Lock()
	if s.status != StatusIdle || !s.eligibleLocked(u) {
		s.mu.Unlock()
		return
	}
	gen := s.generation
	delay := s.promptDelay
	s.mu.Unlock()

	time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen || s.status != StatusIdle || s.prompted {
			return
		}
		user, ok := s.users.Get()
		if !ok || !s.eligibleLocked(user) {
			return
		}
		s.status = StatusPrompted
		if s.metrics != nil {
			s.metrics.SessionsStarted.WithLabelValues("homebase").Inc()
		}
	})
}

// TriggerPrompt shows the prompt immediately, regardless of the
// once-per-mount latch. Safe to call repeatedly.
func (s *Session) TriggerPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusIdle {
		return
	}
	s.clearProofLocked()
	s.status = StatusPrompted
	if s.metrics != nil {
		s.metrics.SessionsStarted.WithLabelValues("homebase").Inc()
	}
}

// Affirm records the "yes, I am at home" answer and moves to proof capture.
func (s *Session) Affirm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPrompted {
		return
	}
	s.status = StatusAwaitingProof
}

// Decline dismisses the prompt and latches it off for this mount.
func (s *Session) Decline(ctx context.Context) {
	s.Cancel(ctx)
}

// CaptureSelfie acquires a live still and uploads it as proof.
func (s *Session) CaptureSelfie(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusAwaitingProof && s.status != StatusProofCaptured {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	frame, err := s.camera.CaptureImage(ctx)
	if err != nil {
		return s.setProofError(verrs.Wrap(err, verrs.CodeSensor, "Camera failed. Please try again."))
	}
	if frame == nil || frame.Empty() {
		return s.setProofError(verrs.New(verrs.CodeSensor, "Camera unavailable."))
	}
	return s.AttachPhoto(ctx, *frame, "selfie.jpg")
}

// AttachPhoto uploads a picked or captured photo. Both capture paths
// converge here; the canonical URL the backend returns is what gets
// persisted, never the local preview bytes.
func (s *Session) AttachPhoto(ctx context.Context, frame capture.Frame, filename string) error {
	s.mu.Lock()
	if s.status != StatusAwaitingProof && s.status != StatusProofCaptured {
		s.mu.Unlock()
		return nil
	}
	if s.busy {
		s.mu.Unlock()
		return nil
	}
	s.busy = true
	s.lastErr = nil
	gen := s.generation
	s.mu.Unlock()

	res, err := s.gw.UploadLocationPhoto(ctx, frame, filename)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.busy = false
		return nil
	}
	s.busy = false
	if err != nil {
		s.lastErr = err
		s.countFailure("upload")
		return err
	}
	s.preview = &frame
	s.photoURL = res.URL
	s.status = StatusProofCaptured
	return nil
}

// ClearPhoto discards the proof photo, returning to AwaitingProof.
func (s *Session) ClearPhoto() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusProofCaptured {
		return
	}
	s.clearProofLocked()
	s.status = StatusAwaitingProof
}

// ConfirmLocation acquires the device coordinates, issues the field update,
// and on success merges the proof into the cached user record in place. On
// failure the photo is retained and the session returns to ProofCaptured
// for an explicit retry.
func (s *Session) ConfirmLocation(ctx context.Context) error {
	s.mu.Lock()
	if (s.status != StatusAwaitingProof && s.status != StatusProofCaptured) || s.busy {
		s.mu.Unlock()
		return nil
	}
	if s.photoURL == "" {
		err := verrs.New(verrs.CodeInput, "Please upload or capture a photo before verifying.")
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	user, ok := s.users.Get()
	if !ok || !user.IsAgent() {
		err := verrs.New(verrs.CodeConflict, "No agent profile to verify.")
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	s.busy = true
	s.status = StatusConfirming
	s.lastErr = nil
	gen := s.generation
	photoURL := s.photoURL
	attempt := len(user.Agent.Verifications) + 1
	s.mu.Unlock()

	coords, err := capture.Locate(ctx, s.locator, s.geoTimeout)
	if err != nil {
		s.countFailure("geolocate")
		return s.rollbackConfirm(gen, err)
	}

	err = s.gw.VerifyAgentLocation(ctx, user.Agent.GUID, gateway.LocationUpdate{
		Latitude:         coords.Latitude,
		Longitude:        coords.Longitude,
		LocationPhoto:    photoURL,
		LocationVerified: true,
	})
	if err != nil {
		s.countFailure("update")
		return s.rollbackConfirm(gen, err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.busy = false
		s.mu.Unlock()
		return nil
	}
	s.clearProofLocked()
	s.status = StatusIdle
	s.prompted = true
	s.busy = false
	s.mu.Unlock()

	// Optimistic in-place update: dependent consumers see the new home base
	// without a reload.
	s.users.ApplyHomebase(identity.HomebaseUpdate{
		Coordinates: coords,
		PhotoURL:    photoURL,
		VerifiedAt:  s.now(),
	})

	if s.metrics != nil {
		s.metrics.HomebaseVerified.Inc()
	}
	s.audit(ctx, "homebase_verified",
		"status", string(StatusLogged),
		"agent_guid", user.Agent.GUID,
		"attempt", attempt,
	)
	return nil
}

func (s *Session) rollbackConfirm(gen uuid.UUID, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.busy = false
		return nil
	}
	s.lastErr = err
	s.status = StatusProofCaptured
	s.busy = false
	return err
}

// Cancel dismisses the session at any point, latching the automatic prompt
// off for this mount. A second call is a no-op.
func (s *Session) Cancel(ctx context.Context) {
	s.mu.Lock()
	if s.status == StatusIdle && s.prompted {
		s.mu.Unlock()
		return
	}
	wasActive := s.status != StatusIdle
	s.clearProofLocked()
	s.status = StatusIdle
	s.generation = uuid.New()
	s.prompted = true
	s.busy = false
	s.mu.Unlock()

	if wasActive {
		if s.metrics != nil {
			s.metrics.SessionsCancelled.WithLabelValues("homebase").Inc()
		}
		s.audit(ctx, "homebase_session_dismissed")
	}
}

// Reset re-arms the automatic prompt, e.g. after a fresh login.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearProofLocked()
	s.status = StatusIdle
	s.generation = uuid.New()
	s.prompted = false
	s.busy = false
}

func (s *Session) clearProofLocked() {
	s.preview = nil
	s.photoURL = ""
	s.lastErr = nil
}

func (s *Session) setProofError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	return err
}

// View is a read-only snapshot of session state.
type View struct {
	Status    Status `json:"status"`
	HasPhoto  bool   `json:"hasPhoto"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	LastError string `json:"lastError,omitempty"`
	Attempt   int    `json:"attempt"`
}

// Snapshot returns the current state for rendering. Attempt counts this
// verification as number prior-proofs + 1.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt := 1
	if user, ok := s.users.Get(); ok && user.Agent != nil {
		attempt = len(user.Agent.Verifications) + 1
	}
	return View{
		Status:    s.status,
		HasPhoto:  s.photoURL != "",
		PhotoURL:  s.photoURL,
		LastError: verrs.UserMessage(s.lastErr),
		Attempt:   attempt,
	}
}

func (s *Session) countFailure(stage string) {
	if s.metrics != nil {
		s.metrics.StageFailures.WithLabelValues(stage).Inc()
	}
}

func (s *Session) audit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	args := append([]any{"event", event, "log_type", "audit"}, attrs...)
	s.logger.InfoContext(ctx, event, args...)
}
