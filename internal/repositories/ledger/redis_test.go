package ledger

import (
	"context"
	"errors"
	"sync"
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

func (s *RedisRepositoryTestSuite) TestCreateRecordNeverOverwrites() {
	ctx := context.Background()

	out, err := s.repo.CreateRecord(ctx, &CreateRecordInput{Record: &models.ParticipantRecord{
		GatheringID:    "g-1",
		ParticipantID:  "user-1",
		OpenMicSeconds: 42,
		JoinedAt:       s.testNow,
	}})
	s.Require().NoError(err)
	s.True(out.Created)

	out, err = s.repo.CreateRecord(ctx, &CreateRecordInput{Record: &models.ParticipantRecord{
		GatheringID:   "g-1",
		ParticipantID: "user-1",
	}})
	s.Require().NoError(err)
	s.False(out.Created)

	record, err := s.repo.GetRecord(ctx, &GetRecordInput{GatheringID: "g-1", ParticipantID: "user-1"})
	s.Require().NoError(err)
	s.Equal(42.0, record.OpenMicSeconds)
	s.True(s.testNow.Equal(record.JoinedAt))
}

func (s *RedisRepositoryTestSuite) TestGetRecordNotFound() {
	_, err := s.repo.GetRecord(context.Background(), &GetRecordInput{GatheringID: "g-1", ParticipantID: "user-1"})
	s.ErrorIs(err, ErrRecordNotFound)
}

func (s *RedisRepositoryTestSuite) TestUpdateRecordUpsertsWithDefault() {
	ctx := context.Background()

	record, err := s.repo.UpdateRecord(ctx, &UpdateRecordInput{
		GatheringID:   "g-1",
		ParticipantID: "user-1",
		Default: func() *models.ParticipantRecord {
			return &models.ParticipantRecord{JoinedAt: s.testNow}
		},
		Mutate: func(r *models.ParticipantRecord) error {
			r.ServerMuteCount++
			return nil
		},
	})
	s.Require().NoError(err)
	s.Equal("g-1", record.GatheringID)
	s.Equal("user-1", record.ParticipantID)
	s.Equal(1, record.ServerMuteCount)

	list, err := s.repo.ListRecords(ctx, &ListRecordsInput{GatheringID: "g-1"})
	s.Require().NoError(err)
	s.Require().Len(list.Records, 1)
}

func (s *RedisRepositoryTestSuite) TestUpdateRecordWithoutDefault() {
	_, err := s.repo.UpdateRecord(context.Background(), &UpdateRecordInput{
		GatheringID:   "g-1",
		ParticipantID: "user-1",
		Mutate:        func(*models.ParticipantRecord) error { return nil },
	})
	s.ErrorIs(err, ErrRecordNotFound)
}

func (s *RedisRepositoryTestSuite) TestUpdateRecordMutateErrorAborts() {
	ctx := context.Background()
	_, err := s.repo.CreateRecord(ctx, &CreateRecordInput{Record: &models.ParticipantRecord{
		GatheringID:   "g-1",
		ParticipantID: "user-1",
	}})
	s.Require().NoError(err)

	errStop := errors.New("stop")
	_, err = s.repo.UpdateRecord(ctx, &UpdateRecordInput{
		GatheringID:   "g-1",
		ParticipantID: "user-1",
		Mutate: func(r *models.ParticipantRecord) error {
			r.ServerMuteCount = 99
			return errStop
		},
	})
	s.ErrorIs(err, errStop)

	record, err := s.repo.GetRecord(ctx, &GetRecordInput{GatheringID: "g-1", ParticipantID: "user-1"})
	s.Require().NoError(err)
	s.Zero(record.ServerMuteCount)
}

func (s *RedisRepositoryTestSuite) TestConcurrentUpdatesAreSerialized() {
	ctx := context.Background()
	const writers = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.repo.UpdateRecord(ctx, &UpdateRecordInput{
				GatheringID:   "g-1",
				ParticipantID: "user-1",
				Default:       func() *models.ParticipantRecord { return &models.ParticipantRecord{} },
				Mutate: func(r *models.ParticipantRecord) error {
					r.OpenMicSeconds += 10
					return nil
				},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}

	record, err := s.repo.GetRecord(ctx, &GetRecordInput{GatheringID: "g-1", ParticipantID: "user-1"})
	s.Require().NoError(err)
	s.Equal(float64(writers*10), record.OpenMicSeconds)
}

func (s *RedisRepositoryTestSuite) TestListAndDeleteRecords() {
	ctx := context.Background()
	for _, id := range []string{"user-b", "user-a", "user-c"} {
		_, err := s.repo.CreateRecord(ctx, &CreateRecordInput{Record: &models.ParticipantRecord{
			GatheringID:   "g-1",
			ParticipantID: id,
		}})
		s.Require().NoError(err)
	}
	_, err := s.repo.CreateRecord(ctx, &CreateRecordInput{Record: &models.ParticipantRecord{
		GatheringID:   "g-2",
		ParticipantID: "user-a",
	}})
	s.Require().NoError(err)

	list, err := s.repo.ListRecords(ctx, &ListRecordsInput{GatheringID: "g-1"})
	s.Require().NoError(err)
	s.Require().Len(list.Records, 3)
	s.Equal("user-a", list.Records[0].ParticipantID)
	s.Equal("user-c", list.Records[2].ParticipantID)

	s.Require().NoError(s.repo.DeleteRecords(ctx, &DeleteRecordsInput{GatheringID: "g-1"}))

	list, err = s.repo.ListRecords(ctx, &ListRecordsInput{GatheringID: "g-1"})
	s.Require().NoError(err)
	s.Empty(list.Records)

	other, err := s.repo.ListRecords(ctx, &ListRecordsInput{GatheringID: "g-2"})
	s.Require().NoError(err)
	s.Len(other.Records, 1)
}

func (s *RedisRepositoryTestSuite) TestCloseLedgerBlocksNewRecords() {
	ctx := context.Background()
	_, err := s.repo.CreateRecord(ctx, &CreateRecordInput{Record: &models.ParticipantRecord{
		GatheringID:   "g-1",
		ParticipantID: "user-1",
	}})
	s.Require().NoError(err)

	s.Require().NoError(s.repo.CloseLedger(ctx, &CloseLedgerInput{GatheringID: "g-1"}))

	_, err = s.repo.CreateRecord(ctx, &CreateRecordInput{Record: &models.ParticipantRecord{
		GatheringID:   "g-1",
		ParticipantID: "user-2",
	}})
	s.ErrorIs(err, ErrLedgerClosed)

	_, err = s.repo.UpdateRecord(ctx, &UpdateRecordInput{
		GatheringID:   "g-1",
		ParticipantID: "user-3",
		Default:       func() *models.ParticipantRecord { return &models.ParticipantRecord{} },
		Mutate:        func(*models.ParticipantRecord) error { return nil },
		RequireOpen:   true,
	})
	s.ErrorIs(err, ErrLedgerClosed)

	// existing records can still be updated by writers that do not require an open ledger
	record, err := s.repo.UpdateRecord(ctx, &UpdateRecordInput{
		GatheringID:   "g-1",
		ParticipantID: "user-1",
		Mutate: func(r *models.ParticipantRecord) error {
			r.Closed = true
			return nil
		},
	})
	s.Require().NoError(err)
	s.True(record.Closed)

	list, err := s.repo.ListRecords(ctx, &ListRecordsInput{GatheringID: "g-1"})
	s.Require().NoError(err)
	s.Require().Len(list.Records, 1)
	s.Equal("user-1", list.Records[0].ParticipantID)

	// other gatherings are unaffected
	out, err := s.repo.CreateRecord(ctx, &CreateRecordInput{Record: &models.ParticipantRecord{
		GatheringID:   "g-2",
		ParticipantID: "user-2",
	}})
	s.Require().NoError(err)
	s.True(out.Created)
}

func (s *RedisRepositoryTestSuite) TestDeleteRecordsClearsClosedMarker() {
	ctx := context.Background()
	s.Require().NoError(s.repo.CloseLedger(ctx, &CloseLedgerInput{GatheringID: "g-1"}))
	s.Require().NoError(s.repo.DeleteRecords(ctx, &DeleteRecordsInput{GatheringID: "g-1"}))

	s.False(s.mr.Exists(closedKey("g-1")))
}
