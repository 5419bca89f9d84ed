// Package session hosts the two verification engines behind one facade and
// keeps the home-base prompt reactive to identity changes.
package session

import (
	"context"

	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/internal/session/homebase"
	"github.com/Reecheble2022/flowswitch-verify/internal/session/note"
)

// Host owns the note and home-base sessions for one deployment. It
// subscribes to the identity holder so that every login or in-place agent
// update re-evaluates home-base prompt eligibility.
type Host struct {
	notes    *note.Session
	homebase *homebase.Session
	users    *identity.Holder
}

func NewHost(notes *note.Session, hb *homebase.Session, users *identity.Holder) *Host {
	h := &Host{notes: notes, homebase: hb, users: users}
	users.Subscribe(hb.EvaluatePrompt)
	if u, ok := users.Get(); ok {
		hb.EvaluatePrompt(u)
	}
	return h
}

// Notes returns the cash-note session.
func (h *Host) Notes() *note.Session { return h.notes }

// Homebase returns the home-base session.
func (h *Host) Homebase() *homebase.Session { return h.homebase }

// StartNoteVerification opens (or restarts) a cash-note session. Safe to
// call while one is already running; prior progress is discarded.
func (h *Host) StartNoteVerification(ctx context.Context, opts note.StartOptions) error {
	return h.notes.Start(ctx, opts)
}

// TriggerHomeVerificationPrompt shows the home-base prompt on demand,
// bypassing the automatic eligibility latch.
func (h *Host) TriggerHomeVerificationPrompt() {
	h.homebase.TriggerPrompt()
}
