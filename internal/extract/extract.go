// Package extract runs the local text-recognition pass over a captured note
// and pulls the fields the confirm step previews. Extraction is best-effort:
// it completes within a bounded time and never fails outright, degrading to
// "Not detected" placeholders the user can proceed past. Server-canonical
// values override these guesses at confirm time.
package extract

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
)

// NotDetected is the placeholder for any field the pass could not match.
const NotDetected = "Not detected"

// LocalCurrency suffixes the denomination guess.
const LocalCurrency = "USD"

var (
	serialPattern       = regexp.MustCompile(`[A-Z0-9]{10,12}`)
	denominationPattern = regexp.MustCompile(`\b(100|50|20|10|5|1)\b`)
)

// Fields is the best-effort result of one extraction pass.
type Fields struct {
	SerialNumber string `json:"serialNumber"`
	Denomination string `json:"denomination"`
}

// Degraded reports whether any field fell back to the placeholder.
func (f Fields) Degraded() bool {
	return f.SerialNumber == NotDetected || f.Denomination == NotDetected
}

// Recognizer turns an image into recognized text. The engine itself is an
// external collaborator; only this contract matters here.
type Recognizer interface {
	RecognizeText(ctx context.Context, frame capture.Frame) (string, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, frame capture.Frame) (string, error)

func (f RecognizerFunc) RecognizeText(ctx context.Context, frame capture.Frame) (string, error) {
	return f(ctx, frame)
}

// Service bounds the recognizer and maps its text to fields.
type Service struct {
	rec     Recognizer
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(rec Recognizer, opts ...Option) *Service {
	svc := &Service{
		rec:     rec,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Extract recognizes text in the frame and matches out the serial number and
// denomination. It never returns an error: recognizer failure or timeout
// yields placeholders for both fields.
func (s *Service) Extract(ctx context.Context, frame capture.Frame) Fields {
	notDetected := Fields{SerialNumber: NotDetected, Denomination: NotDetected}

	if s.rec == nil || frame.Empty() {
		return notDetected
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.rec.RecognizeText(ctx, frame)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "text recognition failed, degrading",
				"error", err.Error(),
			)
		}
		return notDetected
	}

	return MatchFields(text)
}

// MatchFields applies the note field patterns to recognized text. Confidence
// is binary per field: a pattern either matches or the field reads
// "Not detected".
func MatchFields(text string) Fields {
	fields := Fields{SerialNumber: NotDetected, Denomination: NotDetected}
	if m := serialPattern.FindString(text); m != "" {
		fields.SerialNumber = m
	}
	if m := denominationPattern.FindString(text); m != "" {
		fields.Denomination = m + " " + LocalCurrency
	}
	return fields
}
