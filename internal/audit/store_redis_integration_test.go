//go:build integration

package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Reecheble2022/flowswitch-verify/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = NewRedisStore(s.redis.Client, 5)
}

func (s *RedisStoreSuite) TestAppendAndRecent() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Append(ctx, Event{
			Action: fmt.Sprintf("action-%d", i),
			Status: 200,
		}))
	}

	events, err := s.store.Recent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal("action-2", events[0].Action)
	s.Equal("action-0", events[2].Action)
}

func (s *RedisStoreSuite) TestCapEvictsOldest() {
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		s.Require().NoError(s.store.Append(ctx, Event{Action: fmt.Sprintf("action-%d", i)}))
	}

	events, err := s.store.Recent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 5)
	s.Equal("action-7", events[0].Action)
	s.Equal("action-3", events[4].Action)
}

func (s *RedisStoreSuite) TestRecentLimit() {
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		s.Require().NoError(s.store.Append(ctx, Event{Action: fmt.Sprintf("action-%d", i)}))
	}

	events, err := s.store.Recent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("action-3", events[0].Action)
}
