package gathering

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

func (s *RedisRepositoryTestSuite) newGathering(id string, startOffset time.Duration) *models.Gathering {
	return &models.Gathering{
		ID:        id,
		VenueID:   "venue-1",
		ChannelID: "chan-1",
		RoleIDs:   []string{"role-a"},
		StartAt:   s.testNow.Add(startOffset),
		EndAt:     s.testNow.Add(startOffset + time.Hour),
		Weight:    1,
		Status:    models.GatheringStatusScheduled,
		CreatedBy: "user-1",
		CreatedAt: s.testNow,
	}
}

func (s *RedisRepositoryTestSuite) TestSaveAndGetGathering() {
	ctx := context.Background()
	g := s.newGathering("g-1", 0)

	s.Require().NoError(s.repo.SaveGathering(ctx, &SaveGatheringInput{Gathering: g}))

	got, err := s.repo.GetGathering(ctx, &GetGatheringInput{GatheringID: "g-1"})
	s.Require().NoError(err)
	s.Equal("venue-1", got.VenueID)
	s.Equal("chan-1", got.ChannelID)
	s.Equal([]string{"role-a"}, got.RoleIDs)
	s.Equal(models.GatheringStatusScheduled, got.Status)
	s.True(g.StartAt.Equal(got.StartAt))
	s.True(g.EndAt.Equal(got.EndAt))
}

func (s *RedisRepositoryTestSuite) TestGetGatheringNotFound() {
	_, err := s.repo.GetGathering(context.Background(), &GetGatheringInput{GatheringID: "missing"})
	s.ErrorIs(err, ErrGatheringNotFound)
}

func (s *RedisRepositoryTestSuite) TestListGatheringsOrderedByStart() {
	ctx := context.Background()
	s.Require().NoError(s.repo.SaveGathering(ctx, &SaveGatheringInput{Gathering: s.newGathering("late", 2*time.Hour)}))
	s.Require().NoError(s.repo.SaveGathering(ctx, &SaveGatheringInput{Gathering: s.newGathering("early", time.Hour)}))

	out, err := s.repo.ListGatherings(ctx, &ListGatheringsInput{VenueID: "venue-1"})
	s.Require().NoError(err)
	s.Require().Len(out.Gatherings, 2)
	s.Equal("early", out.Gatherings[0].ID)
	s.Equal("late", out.Gatherings[1].ID)

	empty, err := s.repo.ListGatherings(ctx, &ListGatheringsInput{VenueID: "venue-2"})
	s.Require().NoError(err)
	s.Empty(empty.Gatherings)
}

func (s *RedisRepositoryTestSuite) TestTransitionLifecycle() {
	ctx := context.Background()
	s.Require().NoError(s.repo.SaveGathering(ctx, &SaveGatheringInput{Gathering: s.newGathering("g-1", 0)}))

	out, err := s.repo.TransitionGathering(ctx, &TransitionGatheringInput{
		GatheringID: "g-1",
		To:          models.GatheringStatusOpen,
		At:          s.testNow,
	})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(models.GatheringStatusOpen, out.Gathering.Status)
	s.True(s.testNow.Equal(out.Gathering.OpenedAt))

	open, err := s.repo.ListOpenGatherings(ctx, &ListOpenGatheringsInput{VenueID: "venue-1"})
	s.Require().NoError(err)
	s.Require().Len(open.Gatherings, 1)

	// repeat is a no-op
	out, err = s.repo.TransitionGathering(ctx, &TransitionGatheringInput{
		GatheringID: "g-1",
		To:          models.GatheringStatusOpen,
		At:          s.testNow.Add(time.Minute),
	})
	s.Require().NoError(err)
	s.False(out.Changed)
	s.True(s.testNow.Equal(out.Gathering.OpenedAt))

	out, err = s.repo.TransitionGathering(ctx, &TransitionGatheringInput{
		GatheringID: "g-1",
		To:          models.GatheringStatusClosed,
		At:          s.testNow.Add(time.Hour),
	})
	s.Require().NoError(err)
	s.True(out.Changed)

	open, err = s.repo.ListOpenGatherings(ctx, &ListOpenGatheringsInput{VenueID: "venue-1"})
	s.Require().NoError(err)
	s.Empty(open.Gatherings)

	_, err = s.repo.TransitionGathering(ctx, &TransitionGatheringInput{
		GatheringID: "g-1",
		To:          models.GatheringStatusOpen,
		At:          s.testNow.Add(2 * time.Hour),
	})
	s.ErrorIs(err, ErrGatheringClosed)
}

func (s *RedisRepositoryTestSuite) TestTransitionNotFound() {
	_, err := s.repo.TransitionGathering(context.Background(), &TransitionGatheringInput{
		GatheringID: "missing",
		To:          models.GatheringStatusOpen,
	})
	s.ErrorIs(err, ErrGatheringNotFound)
}

func (s *RedisRepositoryTestSuite) TestResults() {
	ctx := context.Background()
	_, err := s.repo.GetResults(ctx, &GetResultsInput{GatheringID: "g-1"})
	s.ErrorIs(err, ErrResultsNotFound)

	s.Require().NoError(s.repo.SaveResults(ctx, &SaveResultsInput{
		GatheringID: "g-1",
		Scores: []*models.ParticipantScore{
			{GatheringID: "g-1", ParticipantID: "user-1", OpenMicSeconds: 3000, Score: 100},
		},
	}))

	scores, err := s.repo.GetResults(ctx, &GetResultsInput{GatheringID: "g-1"})
	s.Require().NoError(err)
	s.Require().Len(scores, 1)
	s.Equal("user-1", scores[0].ParticipantID)
	s.Equal(100.0, scores[0].Score)
}

func (s *RedisRepositoryTestSuite) TestDeleteGathering() {
	ctx := context.Background()
	g := s.newGathering("g-1", 0)
	g.Status = models.GatheringStatusOpen
	s.Require().NoError(s.repo.SaveGathering(ctx, &SaveGatheringInput{Gathering: g}))
	s.Require().NoError(s.repo.SaveResults(ctx, &SaveResultsInput{GatheringID: "g-1"}))

	s.Require().NoError(s.repo.DeleteGathering(ctx, &DeleteGatheringInput{GatheringID: "g-1"}))

	_, err := s.repo.GetGathering(ctx, &GetGatheringInput{GatheringID: "g-1"})
	s.ErrorIs(err, ErrGatheringNotFound)
	_, err = s.repo.GetResults(ctx, &GetResultsInput{GatheringID: "g-1"})
	s.ErrorIs(err, ErrResultsNotFound)
	s.False(s.mr.Exists("venue_open_gatherings:venue-1"))

	err = s.repo.DeleteGathering(ctx, &DeleteGatheringInput{GatheringID: "g-1"})
	s.ErrorIs(err, ErrGatheringNotFound)
}
