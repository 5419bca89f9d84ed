// Package identity models the logged-in verifier and the agent records the
// sessions verify against. The cached current-user record is the one shared
// mutable resource in the subsystem; Holder owns it and serializes every
// write through a single merge operation.
package identity

import (
	"sync"
	"time"
)

// PlaceholderAgentGUID is the degraded-path verifier identity used when the
// logged-in user has no resolved agent record of their own.
const PlaceholderAgentGUID = "6889415b6ab4cd35fd1a79e5"

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Verification is one completed home-base proof on an agent record.
type Verification struct {
	Coordinates Coordinates `json:"coordinates"`
	PhotoURL    string      `json:"photoUrl,omitempty"`
	VerifiedAt  time.Time   `json:"verifiedAt"`
}

// AgentProfile is the backend's agent record as the gateway returns it.
type AgentProfile struct {
	GUID             string         `json:"guid"`
	USSDCode         string         `json:"ussdCode"`
	Name             string         `json:"name,omitempty"`
	LocationVerified bool           `json:"locationVerified"`
	HomeLocation     *Coordinates   `json:"homeLocation,omitempty"`
	LocationPhoto    string         `json:"locationPhoto,omitempty"`
	Verifications    []Verification `json:"verifications,omitempty"`
}

// User is the cached current-user record.
type User struct {
	GUID  string        `json:"guid"`
	Email string        `json:"email,omitempty"`
	Name  string        `json:"name,omitempty"`
	Agent *AgentProfile `json:"agentGuid,omitempty"`
}

// IsAgent reports whether the user has a resolved agent identity.
func (u User) IsAgent() bool {
	return u.Agent != nil && u.Agent.GUID != ""
}

// HomebaseUpdate is the payload merged into the user record after a
// successful home-base confirmation.
type HomebaseUpdate struct {
	Coordinates Coordinates
	PhotoURL    string
	VerifiedAt  time.Time
}

// MergeHomebase returns a copy of the user with the home-base proof applied.
// The merge is total: it is defined for every prior state, including a user
// with no agent record yet, and never drops fields the update does not touch.
func (u User) MergeHomebase(up HomebaseUpdate) User {
	merged := u
	agent := AgentProfile{}
	if u.Agent != nil {
		agent = *u.Agent
	}
	agent.LocationVerified = true
	coords := up.Coordinates
	agent.HomeLocation = &coords
	if up.PhotoURL != "" {
		agent.LocationPhoto = up.PhotoURL
	}
	verifications := make([]Verification, len(agent.Verifications), len(agent.Verifications)+1)
	copy(verifications, agent.Verifications)
	agent.Verifications = append(verifications, Verification{
		Coordinates: up.Coordinates,
		PhotoURL:    up.PhotoURL,
		VerifiedAt:  up.VerifiedAt,
	})
	merged.Agent = &agent
	return merged
}

// Holder owns the cached current-user record. Both session engines read it;
// only the home-base success path writes it, via ApplyHomebase.
type Holder struct {
	mu   sync.RWMutex
	user *User
	subs []func(User)
}

func NewHolder() *Holder {
	return &Holder{}
}

// Set replaces the record, e.g. after login. Subscribers run synchronously
// with a copy of the new value.
func (h *Holder) Set(u User) {
	h.mu.Lock()
	stored := u
	h.user = &stored
	subs := make([]func(User), len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(u)
	}
}

// Clear drops the record, e.g. on logout.
func (h *Holder) Clear() {
	h.mu.Lock()
	h.user = nil
	h.mu.Unlock()
}

// Get returns a copy of the record and whether one is set.
func (h *Holder) Get() (User, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.user == nil {
		return User{}, false
	}
	return *h.user, true
}

// ApplyHomebase merges a home-base proof into the record under the holder's
// lock, then notifies subscribers. It is the only sanctioned mutation of
// agent location state.
func (h *Holder) ApplyHomebase(up HomebaseUpdate) (User, bool) {
	h.mu.Lock()
	if h.user == nil {
		h.mu.Unlock()
		return User{}, false
	}
	merged := h.user.MergeHomebase(up)
	h.user = &merged
	subs := make([]func(User), len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(merged)
	}
	return merged, true
}

// Subscribe registers a callback invoked after every Set/ApplyHomebase.
// Used by the session host to re-evaluate home-base prompt eligibility.
func (h *Holder) Subscribe(fn func(User)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}
