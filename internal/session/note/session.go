// Package note implements the cash-note verification session: a state
// machine that walks a verifier through identifying the paying agent,
// photographing notes one at a time, extracting fields locally, and logging
// each confirmed note to the ledger through the Remote Gateway.
package note

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
	"github.com/Reecheble2022/flowswitch-verify/internal/extract"
	"github.com/Reecheble2022/flowswitch-verify/internal/gateway"
	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/metrics"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

// Status tags the session state. Every legal combination of UI conditions
// maps to exactly one tag.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusAwaitingSubject Status = "awaiting_subject"
	StatusCapturing       Status = "capturing"
	StatusExtracting      Status = "extracting"
	StatusReadyToConfirm  Status = "ready_to_confirm"
	StatusConfirming      Status = "confirming"
	StatusLogged          Status = "logged"
	StatusFailed          Status = "failed"
)

// MinSubjectCodeLength is the threshold below which a preset agent code is
// rejected as too short rather than looked up.
const MinSubjectCodeLength = 6

// Subject is the paying agent being verified against. The validation result
// is cached for the session's lifetime; editing the code invalidates it.
type Subject struct {
	Code         string
	ResolvedGUID string
	Validated    bool
}

// LoggedNote is one successfully recorded note, canonical values only.
type LoggedNote struct {
	SerialNumber string    `json:"serialNumber"`
	Denomination string    `json:"denomination"`
	Currency     string    `json:"currency"`
	PhotoURL     string    `json:"photoUrl"`
	PayerCode    string    `json:"payerCode"`
	LoggedAt     time.Time `json:"loggedAt"`
}

// Gateway is the slice of the Remote Gateway this session consumes.
type Gateway interface {
	AgentsByCode(ctx context.Context, code string) ([]identity.AgentProfile, error)
	UploadCashNote(ctx context.Context, frame capture.Frame) (*gateway.UploadResult, error)
	CreateCashNoteVerification(ctx context.Context, rec gateway.CashNoteRecord) error
}

// Extractor runs the local recognition pass. It never fails; it degrades.
type Extractor interface {
	Extract(ctx context.Context, frame capture.Frame) extract.Fields
}

// StartOptions parameterize a new session.
type StartOptions struct {
	// TotalAmount is the expected handover total, carried for audit only.
	TotalAmount string
	// SubjectCode, when long enough, validates immediately and skips the
	// subject prompt on success.
	SubjectCode string
}

// Session is the cash-note verification state machine. All exported methods
// are safe for concurrent use; at most one mutating confirm runs at a time,
// and completions belonging to a cancelled session are discarded.
type Session struct {
	mu         sync.Mutex
	status     Status
	generation uuid.UUID
	subject    Subject
	pending    *capture.Frame
	pendingTok uuid.UUID
	extracted  extract.Fields
	upload     *gateway.UploadResult
	logged     []LoggedNote
	lastErr    error
	total      string
	busy       bool

	lookups singleflight.Group

	gw        Gateway
	camera    capture.Camera
	extractor Extractor
	users     *identity.Holder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
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

func New(gw Gateway, camera capture.Camera, extractor Extractor, users *identity.Holder, opts ...Option) *Session {
	s := &Session{
		status:     StatusIdle,
		generation: uuid.New(),
		gw:         gw,
		camera:     camera,
		extractor:  extractor,
		users:      users,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a fresh session, discarding any prior one. With a preset
// subject code of sufficient length it validates immediately and, on
// success, skips straight to capture; a short preset surfaces a "too short"
// error and stays on the subject prompt.
func (s *Session) Start(ctx context.Context, opts StartOptions) error {
	s.mu.Lock()
	s.resetLocked()
	s.status = StatusAwaitingSubject
	s.total = opts.TotalAmount
	gen := s.generation
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsStarted.WithLabelValues("note").Inc()
	}
	s.audit(ctx, "note_session_started", "total_amount", opts.TotalAmount)

	if opts.SubjectCode == "" {
		return nil
	}

	if len(opts.SubjectCode) < MinSubjectCodeLength {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen {
			return nil
		}
		s.lastErr = verrs.Newf(verrs.CodeInput,
			"Provided agent code is too short (minimum %d characters).", MinSubjectCodeLength)
		return s.lastErr
	}

	s.mu.Lock()
	s.subject = Subject{Code: opts.SubjectCode}
	s.mu.Unlock()

	if err := s.validateSubject(ctx, gen, opts.SubjectCode); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.subject.Validated {
		s.status = StatusCapturing
	}
	return nil
}

// EditSubject records the identifier as typed and invalidates any prior
// validation.
func (s *Session) EditSubject(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAwaitingSubject {
		return
	}
	s.subject = Subject{Code: code}
	s.lastErr = nil
}

// ValidateSubject looks the code up without advancing, the "check" action.
func (s *Session) ValidateSubject(ctx context.Context, code string) error {
	s.mu.Lock()
	if s.status != StatusAwaitingSubject {
		s.mu.Unlock()
		return nil
	}
	s.subject = Subject{Code: code}
	gen := s.generation
	s.mu.Unlock()

	return s.validateSubject(ctx, gen, code)
}

// Proceed validates if needed and advances to capture on success.
func (s *Session) Proceed(ctx context.Context, code string) error {
	s.mu.Lock()
	if s.status != StatusAwaitingSubject {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	if s.subject.Validated && s.subject.Code == code {
		s.status = StatusCapturing
		s.mu.Unlock()
		return nil
	}
	s.subject = Subject{Code: code}
	s.mu.Unlock()

	if err := s.validateSubject(ctx, gen, code); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.subject.Validated {
		s.status = StatusCapturing
	}
	return nil
}

func (s *Session) validateSubject(ctx context.Context, gen uuid.UUID, code string) error {
	if code == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen {
			return nil
		}
		s.subject.Validated = false
		s.lastErr = verrs.New(verrs.CodeInput, "Please enter the agent code.")
		return s.lastErr
	}

	// Concurrent validations of the same code collapse into one lookup.
	res, err, _ := s.lookups.Do(code, func() (any, error) {
		return s.gw.AgentsByCode(ctx, code)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	// Keep only the most recent result: a completion for a cancelled session
	// or an edited code is discarded.
	if s.generation != gen || s.subject.Code != code {
		return nil
	}

	if err != nil {
		s.subject.Validated = false
		s.lastErr = verrs.Wrap(err, verrs.CodeTransport,
			"Error validating agent code: "+verrs.UserMessage(err))
		s.countFailure("validate")
		return s.lastErr
	}

	agents := res.([]identity.AgentProfile)
	switch len(agents) {
	case 0:
		s.subject.Validated = false
		s.lastErr = verrs.New(verrs.CodeNotFound, "Agent not found. Please check the agent code.")
		return s.lastErr
	case 1:
		s.subject = Subject{Code: code, ResolvedGUID: agents[0].GUID, Validated: true}
		s.lastErr = nil
		return nil
	default:
		s.subject.Validated = false
		s.lastErr = verrs.New(verrs.CodeConflict, "Multiple agents matched that code. Please check the agent code.")
		return s.lastErr
	}
}

// CaptureNote acquires one image and kicks off extraction asynchronously.
// Extraction failure degrades to "Not detected" fields, never aborting the
// session.
func (s *Session) CaptureNote(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusCapturing {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	s.mu.Unlock()

	frame, err := s.camera.CaptureImage(ctx)

	s.mu.Lock()
	if s.generation != gen || s.status != StatusCapturing {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.lastErr = verrs.Wrap(err, verrs.CodeSensor, "Camera failed. Please try again.")
		lastErr := s.lastErr
		s.mu.Unlock()
		return lastErr
	}
	if frame == nil || frame.Empty() {
		s.lastErr = verrs.New(verrs.CodeSensor, "Camera unavailable.")
		lastErr := s.lastErr
		s.mu.Unlock()
		return lastErr
	}

	token := uuid.New()
	s.pending = frame
	s.pendingTok = token
	s.upload = nil
	s.extracted = extract.Fields{}
	s.status = StatusExtracting
	s.lastErr = nil
	s.mu.Unlock()

	go s.runExtraction(context.WithoutCancel(ctx), gen, token, *frame)
	return nil
}

func (s *Session) runExtraction(ctx context.Context, gen, token uuid.UUID, frame capture.Frame) {
	fields := s.extractor.Extract(ctx, frame)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.pendingTok != token || s.status != StatusExtracting {
		return
	}
	s.extracted = fields
	s.status = StatusReadyToConfirm
}

// Retake discards the pending capture and its extraction or upload results,
// re-arming the camera.
func (s *Session) Retake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusExtracting, StatusReadyToConfirm, StatusFailed:
	default:
		return
	}
	s.pending = nil
	s.pendingTok = uuid.Nil
	s.upload = nil
	s.extracted = extract.Fields{}
	s.lastErr = nil
	s.status = StatusCapturing
}

// ConfirmNote uploads the pending capture, logs the record with the
// server-canonical fields, and re-arms capture for the next note. Without a
// pending capture and a validated subject it is a no-op. On failure the
// capture is kept so the user retries without recapturing; a retry reuses a
// prior successful upload instead of re-uploading.
func (s *Session) ConfirmNote(ctx context.Context) error {
	s.mu.Lock()
	if s.pending == nil || !s.subject.Validated || s.subject.ResolvedGUID == "" {
		s.mu.Unlock()
		return nil
	}
	if s.busy || (s.status != StatusReadyToConfirm && s.status != StatusFailed) {
		s.mu.Unlock()
		return nil
	}
	s.busy = true
	s.status = StatusConfirming
	s.lastErr = nil
	gen := s.generation
	token := s.pendingTok
	frame := *s.pending
	uploaded := s.upload
	localGuess := s.extracted
	subj := s.subject
	s.mu.Unlock()

	if uploaded == nil {
		res, err := s.gw.UploadCashNote(ctx, frame)
		if err != nil {
			s.countFailure("upload")
			return s.failConfirm(ctx, gen, token, err)
		}
		uploaded = res

		s.mu.Lock()
		if s.generation != gen || s.pendingTok != token {
			s.busy = false
			s.mu.Unlock()
			return nil
		}
		// Stash the canonical result so a retry after a later failure does
		// not upload the same image twice.
		s.upload = uploaded
		s.mu.Unlock()
	}

	verifierGUID := identity.PlaceholderAgentGUID
	verifierID := subj.Code
	if user, ok := s.users.Get(); ok && user.IsAgent() {
		verifierGUID = user.Agent.GUID
		verifierID = user.Agent.USSDCode
	}

	rec := gateway.CashNoteRecord{
		SerialNumber:   uploaded.SerialNumber,
		NoteValue:      uploaded.Denomination,
		NotePhoto:      uploaded.URL,
		PayerEntity:    "Agent",
		PayerGUID:      subj.ResolvedGUID,
		PayerID:        subj.Code,
		VerifierEntity: "Agent",
		VerifierGUID:   verifierGUID,
		VerifierID:     verifierID,
		Currency:       uploaded.Currency,
		Amount:         localGuess.Denomination,
	}

	if err := s.gw.CreateCashNoteVerification(ctx, rec); err != nil {
		s.countFailure("record")
		return s.failConfirm(ctx, gen, token, err)
	}

	s.mu.Lock()
	if s.generation != gen || s.pendingTok != token {
		s.busy = false
		s.mu.Unlock()
		return nil
	}
	s.logged = append(s.logged, LoggedNote{
		SerialNumber: uploaded.SerialNumber,
		Denomination: uploaded.Denomination,
		Currency:     uploaded.Currency,
		PhotoURL:     uploaded.URL,
		PayerCode:    subj.Code,
		LoggedAt:     s.now(),
	})
	count := len(s.logged)
	s.pending = nil
	s.pendingTok = uuid.Nil
	s.upload = nil
	s.extracted = extract.Fields{}
	s.status = StatusCapturing
	s.busy = false
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.NotesLogged.Inc()
	}
	s.audit(ctx, "cash_note_logged",
		"status", string(StatusLogged),
		"serial_number", rec.SerialNumber,
		"payer_code", subj.Code,
		"session_count", count,
	)
	return nil
}

func (s *Session) failConfirm(ctx context.Context, gen, token uuid.UUID, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.pendingTok != token {
		s.busy = false
		return nil
	}
	s.lastErr = err
	s.status = StatusFailed
	s.busy = false
	s.auditLocked(ctx, "cash_note_confirm_failed", "error", err.Error())
	return err
}

// Finish closes a session that logged at least one note and reports how
// many were logged.
func (s *Session) Finish(ctx context.Context) (int, error) {
	s.mu.Lock()
	if len(s.logged) == 0 {
		s.mu.Unlock()
		return 0, verrs.New(verrs.CodeConflict, "No notes logged yet.")
	}
	count := len(s.logged)
	s.resetLocked()
	s.mu.Unlock()

	s.audit(ctx, "note_session_finished", "notes_logged", count)
	return count, nil
}

// Cancel discards all session state. Calling it on an idle session is a
// no-op.
func (s *Session) Cancel(ctx context.Context) {
	s.mu.Lock()
	if s.status == StatusIdle {
		s.mu.Unlock()
		return
	}
	discarded := len(s.logged)
	s.resetLocked()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsCancelled.WithLabelValues("note").Inc()
	}
	s.audit(ctx, "note_session_cancelled", "notes_discarded", discarded)
}

// resetLocked returns every field to the idle baseline and bumps the
// generation so in-flight completions are discarded. Callers hold mu.
func (s *Session) resetLocked() {
	s.status = StatusIdle
	s.generation = uuid.New()
	s.subject = Subject{}
	s.pending = nil
	s.pendingTok = uuid.Nil
	s.upload = nil
	s.extracted = extract.Fields{}
	s.logged = nil
	s.lastErr = nil
	s.total = ""
	s.busy = false
}

// View is a read-only snapshot of session state.
type View struct {
	Status           Status          `json:"status"`
	SubjectCode      string          `json:"subjectCode,omitempty"`
	SubjectValidated bool            `json:"subjectValidated"`
	HasPending       bool            `json:"hasPendingCapture"`
	Extracted        extract.Fields  `json:"extracted"`
	Logged           []LoggedNote    `json:"logged,omitempty"`
	LastError        string          `json:"lastError,omitempty"`
	TotalAmount      string          `json:"totalAmount,omitempty"`
}

// Snapshot returns the current state for rendering.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	logged := make([]LoggedNote, len(s.logged))
	copy(logged, s.logged)
	return View{
		Status:           s.status,
		SubjectCode:      s.subject.Code,
		SubjectValidated: s.subject.Validated,
		HasPending:       s.pending != nil,
		Extracted:        s.extracted,
		Logged:           logged,
		LastError:        verrs.UserMessage(s.lastErr),
		TotalAmount:      s.total,
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
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// auditLocked is audit for call sites already holding mu.
func (s *Session) auditLocked(ctx context.Context, event string, attrs ...any) {
	s.audit(ctx, event, attrs...)
}
