//go:build integration

package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Reecheble2022/flowswitch-verify/internal/gateway"
	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/pkg/testutil/containers"
)

type LookupCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *gateway.LookupCache
}

func TestLookupCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(LookupCacheSuite))
}

func (s *LookupCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = gateway.NewLookupCache(s.redis.Client, time.Minute)
}

func (s *LookupCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *LookupCacheSuite) TestMissThenHit() {
	ctx := context.Background()

	_, ok := s.cache.GetAgents(ctx, "AG12345")
	s.False(ok)

	s.cache.PutAgents(ctx, "AG12345", []identity.AgentProfile{
		{GUID: "agent-guid-1", USSDCode: "AG12345"},
	})

	agents, ok := s.cache.GetAgents(ctx, "AG12345")
	s.Require().True(ok)
	s.Require().Len(agents, 1)
	s.Equal("agent-guid-1", agents[0].GUID)
}

func (s *LookupCacheSuite) TestEmptyResultIsCached() {
	ctx := context.Background()

	// Zero matches is a valid, cacheable lookup result.
	s.cache.PutAgents(ctx, "UNKNOWN", nil)
	agents, ok := s.cache.GetAgents(ctx, "UNKNOWN")
	s.True(ok)
	s.Empty(agents)
}

func (s *LookupCacheSuite) TestInvalidate() {
	ctx := context.Background()

	s.cache.PutAgents(ctx, "AG12345", []identity.AgentProfile{{GUID: "agent-guid-1"}})
	s.cache.Invalidate(ctx, "AG12345")

	_, ok := s.cache.GetAgents(ctx, "AG12345")
	s.False(ok)
}

func (s *LookupCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	short := gateway.NewLookupCache(s.redis.Client, 50*time.Millisecond)

	short.PutAgents(ctx, "AG12345", []identity.AgentProfile{{GUID: "agent-guid-1"}})
	time.Sleep(150 * time.Millisecond)

	_, ok := short.GetAgents(ctx, "AG12345")
	s.False(ok)
}
