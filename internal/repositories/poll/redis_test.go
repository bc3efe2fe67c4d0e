package poll

import (
	"context"
	"testing"
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	repo    Repository
	testNow time.Time
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})

	repo, err := NewRedis(&Config{
		RedisClient: s.client,
	})
	s.Require().NoError(err)
	s.repo = repo

	s.testNow = time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC)
}

func (s *RedisRepositoryTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RedisRepositoryTestSuite))
}

func (s *RedisRepositoryTestSuite) newPoll(id string, createdAt time.Time) *models.Poll {
	return &models.Poll{
		ID:        id,
		VenueID:   "venue-1",
		ChannelID: "chan-1",
		MessageID: "msg-" + id,
		Question:  "Next topic?",
		Options: []models.PollOption{
			{Emoji: "🅰️", Label: "Go"},
			{Emoji: "🅱️", Label: "Rust"},
		},
		AllCanVote: true,
		CreatedAt:  createdAt,
		ClosesAt:   createdAt.Add(time.Hour),
		Status:     models.PollStatusOpen,
	}
}

func (s *RedisRepositoryTestSuite) TestSaveAndGetPoll() {
	ctx := context.Background()
	s.Require().NoError(s.repo.SavePoll(ctx, &SavePollInput{Poll: s.newPoll("p-1", s.testNow)}))

	p, err := s.repo.GetPoll(ctx, &GetPollInput{PollID: "p-1"})
	s.Require().NoError(err)
	s.Equal("Next topic?", p.Question)
	s.Len(p.Options, 2)
	s.Equal(models.PollStatusOpen, p.Status)
}

func (s *RedisRepositoryTestSuite) TestGetPollNotFound() {
	_, err := s.repo.GetPoll(context.Background(), &GetPollInput{PollID: "missing"})
	s.ErrorIs(err, ErrPollNotFound)
}

func (s *RedisRepositoryTestSuite) TestListPollsNewestFirst() {
	ctx := context.Background()
	s.Require().NoError(s.repo.SavePoll(ctx, &SavePollInput{Poll: s.newPoll("old", s.testNow)}))
	s.Require().NoError(s.repo.SavePoll(ctx, &SavePollInput{Poll: s.newPoll("new", s.testNow.Add(time.Minute))}))

	out, err := s.repo.ListPolls(ctx, &ListPollsInput{VenueID: "venue-1"})
	s.Require().NoError(err)
	s.Require().Len(out.Polls, 2)
	s.Equal("new", out.Polls[0].ID)
	s.Equal("old", out.Polls[1].ID)
}

func (s *RedisRepositoryTestSuite) TestClosePollOnce() {
	ctx := context.Background()
	s.Require().NoError(s.repo.SavePoll(ctx, &SavePollInput{Poll: s.newPoll("p-1", s.testNow)}))

	out, err := s.repo.ClosePoll(ctx, &ClosePollInput{
		PollID:   "p-1",
		Results:  map[string]int{"🅰️": 3, "🅱️": 1},
		ClosedAt: s.testNow.Add(time.Hour),
	})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(models.PollStatusClosed, out.Poll.Status)

	out, err = s.repo.ClosePoll(ctx, &ClosePollInput{
		PollID:   "p-1",
		Results:  map[string]int{"🅰️": 0},
		ClosedAt: s.testNow.Add(2 * time.Hour),
	})
	s.Require().NoError(err)
	s.False(out.Changed)
	s.Equal(3, out.Poll.Results["🅰️"])
	s.True(s.testNow.Add(time.Hour).Equal(out.Poll.ClosedAt))
}

func (s *RedisRepositoryTestSuite) TestClosePollNotFound() {
	_, err := s.repo.ClosePoll(context.Background(), &ClosePollInput{PollID: "missing"})
	s.ErrorIs(err, ErrPollNotFound)
}
