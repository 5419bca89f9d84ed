package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
	"github.com/Reecheble2022/flowswitch-verify/internal/extract"
	"github.com/Reecheble2022/flowswitch-verify/internal/gateway"
	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/internal/session/homebase"
	"github.com/Reecheble2022/flowswitch-verify/internal/session/note"
)

type stubGateway struct{}

func (stubGateway) AgentsByCode(context.Context, string) ([]identity.AgentProfile, error) {
	return nil, nil
}

func (stubGateway) UploadCashNote(context.Context, capture.Frame) (*gateway.UploadResult, error) {
	return &gateway.UploadResult{GUID: "UP-1"}, nil
}

func (stubGateway) CreateCashNoteVerification(context.Context, gateway.CashNoteRecord) error {
	return nil
}

func (stubGateway) UploadLocationPhoto(context.Context, capture.Frame, string) (*gateway.UploadResult, error) {
	return &gateway.UploadResult{GUID: "UP-2", URL: "https://cdn.example/proof.jpg"}, nil
}

func (stubGateway) VerifyAgentLocation(context.Context, string, gateway.LocationUpdate) error {
	return nil
}

func newTestHost(users *identity.Holder) *Host {
	gw := stubGateway{}
	camera := capture.NewFrameQueue()
	notes := note.New(gw, camera, extract.New(nil), users)
	hb := homebase.New(gw, camera, &capture.StaticLocator{}, users,
		homebase.WithPromptDelay(5*time.Millisecond))
	return NewHost(notes, hb, users)
}

func TestHostEvaluatesPromptOnLogin(t *testing.T) {
	users := identity.NewHolder()
	host := newTestHost(users)

	users.Set(identity.User{
		GUID:  "USR-1",
		Agent: &identity.AgentProfile{GUID: "AGT-1", USSDCode: "254001"},
	})

	require.Eventually(t, func() bool {
		return host.Homebase().Snapshot().Status == homebase.StatusPrompted
	}, time.Second, 2*time.Millisecond)
}

func TestHostEvaluatesExistingUser(t *testing.T) {
	users := identity.NewHolder()
	users.Set(identity.User{
		GUID:  "USR-1",
		Agent: &identity.AgentProfile{GUID: "AGT-1", USSDCode: "254001"},
	})
	host := newTestHost(users)

	require.Eventually(t, func() bool {
		return host.Homebase().Snapshot().Status == homebase.StatusPrompted
	}, time.Second, 2*time.Millisecond)
}

func TestHostStartNoteVerificationRestarts(t *testing.T) {
	users := identity.NewHolder()
	host := newTestHost(users)

	require.NoError(t, host.StartNoteVerification(context.Background(), note.StartOptions{}))
	require.Equal(t, note.StatusAwaitingSubject, host.Notes().Snapshot().Status)

	require.NoError(t, host.StartNoteVerification(context.Background(), note.StartOptions{}))
	require.Equal(t, note.StatusAwaitingSubject, host.Notes().Snapshot().Status)
}

func TestHostManualPromptBypassesLatch(t *testing.T) {
	users := identity.NewHolder()
	host := newTestHost(users)

	host.Homebase().Decline(context.Background())
	host.TriggerHomeVerificationPrompt()

	require.Equal(t, homebase.StatusPrompted, host.Homebase().Snapshot().Status)
}
