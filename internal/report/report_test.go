package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

type narratorFunc func(ctx context.Context, agent identity.AgentProfile, question string) (string, error)

func (f narratorFunc) Narrate(ctx context.Context, agent identity.AgentProfile, question string) (string, error) {
	return f(ctx, agent, question)
}

func TestAgentLocationReportQuestion(t *testing.T) {
	var asked string
	a := NewAnalyst(narratorFunc(func(_ context.Context, _ identity.AgentProfile, q string) (string, error) {
		asked = q
		return "some report", nil
	}))

	text, err := a.AgentLocationReport(context.Background(), identity.AgentProfile{GUID: "AGT-1", USSDCode: "254001"})

	require.NoError(t, err)
	require.Equal(t, "some report", text)
	require.Contains(t, asked, "254001")
	require.Contains(t, asked, "operate from")
}

func TestAgentLocationReportRequiresAgent(t *testing.T) {
	a := NewAnalyst(TemplateNarrator{})

	_, err := a.AgentLocationReport(context.Background(), identity.AgentProfile{})

	require.Error(t, err)
	require.Equal(t, verrs.CodeInput, verrs.CodeOf(err))
}

func TestAgentLocationReportNarratorFailure(t *testing.T) {
	a := NewAnalyst(narratorFunc(func(context.Context, identity.AgentProfile, string) (string, error) {
		return "", errors.New("model endpoint unreachable")
	}))

	_, err := a.AgentLocationReport(context.Background(), identity.AgentProfile{GUID: "AGT-1"})

	require.Error(t, err)
	require.Equal(t, verrs.CodeTransport, verrs.CodeOf(err))
}

func TestTemplateNarrator(t *testing.T) {
	t.Run("unverified agent", func(t *testing.T) {
		text, err := TemplateNarrator{}.Narrate(context.Background(), identity.AgentProfile{
			GUID:     "AGT-1",
			USSDCode: "254001",
		}, "")
		require.NoError(t, err)
		require.Contains(t, text, "Agent 254001")
		require.Contains(t, text, "unverified")
	})

	t.Run("verified agent with history", func(t *testing.T) {
		text, err := TemplateNarrator{}.Narrate(context.Background(), identity.AgentProfile{
			GUID:             "AGT-2",
			USSDCode:         "254002",
			Name:             "Namuwongo Kiosk",
			LocationVerified: true,
			HomeLocation:     &identity.Coordinates{Latitude: 0.3152, Longitude: 32.5816},
			Verifications: []identity.Verification{
				{
					Coordinates: identity.Coordinates{Latitude: 0.3151, Longitude: 32.5817},
					VerifiedAt:  time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC),
				},
			},
		}, "")
		require.NoError(t, err)
		require.Contains(t, text, "Namuwongo Kiosk")
		require.Contains(t, text, "0.3152, 32.5816")
		require.Contains(t, text, "Verified 1 time(s)")
		require.Contains(t, text, "12 Aug 2026")
	})
}
