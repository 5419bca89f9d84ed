// Package report produces human-readable summaries of an agent's
// home-base verification standing.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

// Narrator turns an agent record and a question into a markdown answer.
// Implementations may call out to an external model; TemplateNarrator is the
// built-in offline fallback.
type Narrator interface {
	Narrate(ctx context.Context, agent identity.AgentProfile, question string) (string, error)
}

// Analyst answers location questions about agents.
type Analyst struct {
	narrator Narrator
	logger   *slog.Logger
}

// Option configures an Analyst.
type Option func(*Analyst)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyst) { a.logger = logger }
}

func NewAnalyst(narrator Narrator, opts ...Option) *Analyst {
	a := &Analyst{narrator: narrator}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AgentLocationReport asks the narrator where the agent operates from and
// how trustworthy that location is.
func (a *Analyst) AgentLocationReport(ctx context.Context, agent identity.AgentProfile) (string, error) {
	if agent.GUID == "" {
		return "", verrs.New(verrs.CodeInput, "No agent selected for the report.")
	}
	question := fmt.Sprintf(
		"Where does agent %s operate from, and how reliable is that location?",
		agent.USSDCode,
	)
	text, err := a.narrator.Narrate(ctx, agent, question)
	if err != nil {
		return "", verrs.Wrap(err, verrs.CodeTransport, "Could not produce the location report.")
	}
	if a.logger != nil {
		a.logger.InfoContext(ctx, "agent location report produced",
			"agent_guid", agent.GUID,
			"report_chars", len(text),
		)
	}
	return text, nil
}

// TemplateNarrator renders the report from the record alone, with no
// external calls. It is the default when no model endpoint is configured.
type TemplateNarrator struct{}

func (TemplateNarrator) Narrate(_ context.Context, agent identity.AgentProfile, _ string) (string, error) {
	var b strings.Builder
	name := agent.Name
	if name == "" {
		name = "Agent " + agent.USSDCode
	}
	fmt.Fprintf(&b, "## Location report for %s\n\n", name)

	if agent.HomeLocation != nil {
		fmt.Fprintf(&b, "Registered home base: %.4f, %.4f.\n\n",
			agent.HomeLocation.Latitude, agent.HomeLocation.Longitude)
	} else {
		b.WriteString("No home base is on record yet.\n\n")
	}

	switch n := len(agent.Verifications); {
	case n == 0 && !agent.LocationVerified:
		b.WriteString("This location is unverified. Treat it as self-reported.\n")
	case n == 0:
		b.WriteString("The location is marked verified but no proof records are attached.\n")
	default:
		last := agent.Verifications[n-1]
		fmt.Fprintf(&b, "Verified %d time(s); most recently on %s at %.4f, %.4f.\n",
			n, last.VerifiedAt.Format("2 Jan 2006"),
			last.Coordinates.Latitude, last.Coordinates.Longitude)
	}
	return b.String(), nil
}
