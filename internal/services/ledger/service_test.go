package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
	ledgerRepo "github.com/KirkDiggler/gatherer/internal/repositories/ledger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type LedgerServiceTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	service Service
	ctx     context.Context

	testStart       time.Time
	testGatheringID string
	testChannelID   string
}

func (s *LedgerServiceTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})

	repo, err := ledgerRepo.NewRedis(&ledgerRepo.Config{RedisClient: s.client})
	s.Require().NoError(err)

	svc, err := New(&Config{LedgerRepo: repo})
	s.Require().NoError(err)
	s.service = svc

	s.ctx = context.Background()
	s.testStart = time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC)
	s.testGatheringID = "g-1"
	s.testChannelID = "chan-1"
}

func (s *LedgerServiceTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func (s *LedgerServiceTestSuite) at(minutes int) time.Time {
	return s.testStart.Add(time.Duration(minutes) * time.Minute)
}

func (s *LedgerServiceTestSuite) inChannel(state models.VoiceState) models.VoiceState {
	state.ChannelID = s.testChannelID
	return state
}

func (s *LedgerServiceTestSuite) apply(participantID string, prev, cur models.VoiceState, now time.Time) *models.ParticipantRecord {
	out, err := s.service.Apply(s.ctx, &ApplyInput{
		GatheringID: s.testGatheringID,
		ChannelID:   s.testChannelID,
		Event:       event(participantID, prev, cur),
		Now:         now,
	})
	s.Require().NoError(err)
	return out.Record
}

func (s *LedgerServiceTestSuite) finalize(now time.Time) *FinalizeOutput {
	out, err := s.service.Finalize(s.ctx, &FinalizeInput{GatheringID: s.testGatheringID, Now: now})
	s.Require().NoError(err)
	return out
}

func event(participantID string, prev, cur models.VoiceState) *models.PresenceEvent {
	return &models.PresenceEvent{
		VenueID:           "venue-1",
		ParticipantID:     participantID,
		ChannelID:         cur.ChannelID,
		Previous:          prev,
		Current:           cur,
		StartedSpeaking:   prev.Muted && !cur.Muted,
		StoppedSpeaking:   !prev.Muted && cur.Muted,
		StoppedStreaming:  prev.Streaming && !cur.Streaming,
		StoppedCamera:     prev.CameraOn && !cur.CameraOn,
		BecameServerMuted: !prev.ServerMuted && cur.ServerMuted,
		ChannelChanged:    prev.ChannelID != cur.ChannelID,
	}
}

func (s *LedgerServiceTestSuite) TestJoinSpeakMuteFinalize() {
	away := models.VoiceState{}
	speaking := s.inChannel(models.VoiceState{})
	muted := s.inChannel(models.VoiceState{Muted: true})

	record := s.apply("x", away, speaking, s.at(0))
	s.Zero(record.OpenMicSeconds)
	s.True(record.InChannel)
	s.True(s.at(0).Equal(record.JoinedAt))

	record = s.apply("x", speaking, muted, s.at(50))
	s.Equal(3000.0, record.OpenMicSeconds)

	out := s.finalize(s.at(60))
	s.Require().Len(out.Records, 1)
	s.Equal(1, out.Finalized)
	s.Equal(3000.0, out.Records[0].OpenMicSeconds)
	s.True(out.Records[0].Closed)
}

func (s *LedgerServiceTestSuite) TestFinalizeClosesRunningIntervals() {
	away := models.VoiceState{}
	live := s.inChannel(models.VoiceState{Streaming: true, CameraOn: true})

	s.apply("x", away, live, s.at(10))

	out := s.finalize(s.at(40))
	s.Require().Len(out.Records, 1)
	s.Equal(1800.0, out.Records[0].OpenMicSeconds)
	s.Equal(1800.0, out.Records[0].StreamingSeconds)
	s.Equal(1800.0, out.Records[0].CameraSeconds)
}

func (s *LedgerServiceTestSuite) TestFinalizeIsIdempotent() {
	away := models.VoiceState{}
	speaking := s.inChannel(models.VoiceState{})
	s.apply("x", away, speaking, s.at(0))

	first := s.finalize(s.at(30))
	second := s.finalize(s.at(45))

	s.Require().Len(second.Records, 1)
	s.Equal(0, second.Finalized)
	s.Equal(first.Records[0].OpenMicSeconds, second.Records[0].OpenMicSeconds)
	s.Equal(1800.0, second.Records[0].OpenMicSeconds)
	s.True(s.at(30).Equal(second.Records[0].ClosedAt))
}

func (s *LedgerServiceTestSuite) TestApplyAfterFinalizeIsRejected() {
	away := models.VoiceState{}
	speaking := s.inChannel(models.VoiceState{})
	s.apply("x", away, speaking, s.at(0))
	s.finalize(s.at(30))

	_, err := s.service.Apply(s.ctx, &ApplyInput{
		GatheringID: s.testGatheringID,
		ChannelID:   s.testChannelID,
		Event:       event("x", speaking, s.inChannel(models.VoiceState{Muted: true})),
		Now:         s.at(40),
	})
	s.ErrorIs(err, ErrRecordClosed)

	records, err := s.service.GetRecords(s.ctx, &GetRecordsInput{GatheringID: s.testGatheringID})
	s.Require().NoError(err)
	s.Equal(1800.0, records.Records[0].OpenMicSeconds)
}

func (s *LedgerServiceTestSuite) TestDuplicateDeliveryDoesNotDoubleCount() {
	away := models.VoiceState{}
	speaking := s.inChannel(models.VoiceState{})
	muted := s.inChannel(models.VoiceState{Muted: true})

	s.apply("x", away, speaking, s.at(0))
	s.apply("x", speaking, muted, s.at(10))
	record := s.apply("x", speaking, muted, s.at(10))
	s.Equal(600.0, record.OpenMicSeconds)

	record = s.apply("x", speaking, muted, s.at(20))
	s.Equal(600.0, record.OpenMicSeconds)
}

func (s *LedgerServiceTestSuite) TestStaleEventAddsNothing() {
	away := models.VoiceState{}
	speaking := s.inChannel(models.VoiceState{})
	muted := s.inChannel(models.VoiceState{Muted: true})

	s.apply("x", away, speaking, s.at(10))
	// delivered late with a receipt time before the anchor
	record := s.apply("x", speaking, muted, s.at(5))
	s.Zero(record.OpenMicSeconds)
	s.True(record.Muted)
}

func (s *LedgerServiceTestSuite) TestServerMutePenaltyIsDuplicateSafe() {
	speaking := s.inChannel(models.VoiceState{Muted: true})
	serverMuted := s.inChannel(models.VoiceState{Muted: true, ServerMuted: true})

	s.apply("y", speaking, serverMuted, s.at(1))
	record := s.apply("y", speaking, serverMuted, s.at(1))
	s.Equal(1, record.ServerMuteCount)

	s.apply("y", serverMuted, speaking, s.at(2))
	record = s.apply("y", speaking, serverMuted, s.at(3))
	s.Equal(2, record.ServerMuteCount)
	s.Zero(record.OpenMicSeconds)
}

func (s *LedgerServiceTestSuite) TestServerMuteStopsOpenMic() {
	away := models.VoiceState{}
	speaking := s.inChannel(models.VoiceState{})
	serverMuted := s.inChannel(models.VoiceState{ServerMuted: true})

	s.apply("x", away, speaking, s.at(0))
	record := s.apply("x", speaking, serverMuted, s.at(5))
	s.Equal(300.0, record.OpenMicSeconds)
	s.Equal(1, record.ServerMuteCount)
}

func (s *LedgerServiceTestSuite) TestLeavingClosesEveryActivity() {
	away := models.VoiceState{}
	live := s.inChannel(models.VoiceState{Streaming: true, CameraOn: true})
	other := models.VoiceState{ChannelID: "chan-2", Streaming: true, CameraOn: true}

	s.apply("x", away, live, s.at(0))
	record := s.apply("x", live, other, s.at(15))

	s.Equal(900.0, record.OpenMicSeconds)
	s.Equal(900.0, record.StreamingSeconds)
	s.Equal(900.0, record.CameraSeconds)
	s.False(record.InChannel)

	// activity in another channel does not count
	out := s.finalize(s.at(60))
	s.Equal(900.0, out.Records[0].StreamingSeconds)
}

func (s *LedgerServiceTestSuite) TestIntervalsSumAcrossInterleavedActivities() {
	away := models.VoiceState{}
	states := []struct {
		minute int
		state  models.VoiceState
	}{
		{0, s.inChannel(models.VoiceState{Muted: true})},
		{5, s.inChannel(models.VoiceState{})},                                              // mic on
		{7, s.inChannel(models.VoiceState{Streaming: true})},                               // stream on
		{9, s.inChannel(models.VoiceState{Streaming: true, CameraOn: true})},               // camera on
		{12, s.inChannel(models.VoiceState{Muted: true, Streaming: true, CameraOn: true})}, // mic off
		{13, s.inChannel(models.VoiceState{Muted: true, CameraOn: true})},                  // stream off
		{20, s.inChannel(models.VoiceState{CameraOn: true})},                               // mic on
		{22, s.inChannel(models.VoiceState{})},                                             // camera off
		{30, away},                                                                         // leave
	}

	prev := away
	for _, st := range states {
		s.apply("x", prev, st.state, s.at(st.minute))
		prev = st.state
	}

	out := s.finalize(s.at(60))
	s.Require().Len(out.Records, 1)
	r := out.Records[0]
	s.Equal(float64((12-5)+(30-20))*60, r.OpenMicSeconds)
	s.Equal(float64(13-7)*60, r.StreamingSeconds)
	s.Equal(float64(22-9)*60, r.CameraSeconds)
}

func (s *LedgerServiceTestSuite) TestLazyCreationUsesPreviousState() {
	streaming := s.inChannel(models.VoiceState{Streaming: true})
	stopped := s.inChannel(models.VoiceState{})

	// the stream started before anything was recorded, so it is measured from now
	record := s.apply("x", streaming, stopped, s.at(10))
	s.Zero(record.StreamingSeconds)
	s.True(s.at(10).Equal(record.StreamingAnchor))
}

func (s *LedgerServiceTestSuite) TestSeedNeverOverwrites() {
	member := &models.Member{
		ParticipantID: "z",
		RoleIDs:       []string{"role-a"},
		State:         s.inChannel(models.VoiceState{CameraOn: true, Muted: true}),
	}

	out, err := s.service.Seed(s.ctx, &SeedInput{
		GatheringID: s.testGatheringID,
		ChannelID:   s.testChannelID,
		Member:      member,
		Now:         s.at(0),
	})
	s.Require().NoError(err)
	s.True(out.Created)

	records, err := s.service.GetRecords(s.ctx, &GetRecordsInput{GatheringID: s.testGatheringID})
	s.Require().NoError(err)
	s.Require().Len(records.Records, 1)
	seeded := records.Records[0]
	s.Zero(seeded.OpenMicSeconds)
	s.Zero(seeded.StreamingSeconds)
	s.Zero(seeded.CameraSeconds)
	s.True(seeded.CameraOn)
	s.True(seeded.Muted)
	s.True(seeded.InChannel)

	s.apply("z", member.State, s.inChannel(models.VoiceState{Muted: true}), s.at(10))

	out, err = s.service.Seed(s.ctx, &SeedInput{
		GatheringID: s.testGatheringID,
		ChannelID:   s.testChannelID,
		Member:      member,
		Now:         s.at(20),
	})
	s.Require().NoError(err)
	s.False(out.Created)

	records, err = s.service.GetRecords(s.ctx, &GetRecordsInput{GatheringID: s.testGatheringID})
	s.Require().NoError(err)
	s.Equal(600.0, records.Records[0].CameraSeconds)
}

func (s *LedgerServiceTestSuite) TestDeleteRecords() {
	s.apply("x", models.VoiceState{}, s.inChannel(models.VoiceState{}), s.at(0))

	s.Require().NoError(s.service.DeleteRecords(s.ctx, &DeleteRecordsInput{GatheringID: s.testGatheringID}))

	records, err := s.service.GetRecords(s.ctx, &GetRecordsInput{GatheringID: s.testGatheringID})
	s.Require().NoError(err)
	s.Empty(records.Records)
}

func (s *LedgerServiceTestSuite) TestValidation() {
	_, err := New(nil)
	s.ErrorIs(err, ErrNilConfig)

	_, err = New(&Config{})
	s.ErrorIs(err, ErrNilLedgerRepo)

	_, err = s.service.Apply(s.ctx, &ApplyInput{GatheringID: "g-1"})
	s.ErrorIs(err, ErrMissingChannel)

	_, err = s.service.Apply(s.ctx, &ApplyInput{GatheringID: "g-1", ChannelID: "chan-1"})
	s.ErrorIs(err, ErrNilPresence)

	_, err = s.service.Seed(s.ctx, &SeedInput{GatheringID: "g-1", ChannelID: "chan-1"})
	s.ErrorIs(err, ErrNilMember)
}

func (s *LedgerServiceTestSuite) TestApplyAfterFinalizeRejectsNewParticipant() {
	away := models.VoiceState{}
	speaking := s.inChannel(models.VoiceState{})
	s.apply("x", away, speaking, s.at(0))
	s.finalize(s.at(59))

	_, err := s.service.Apply(s.ctx, &ApplyInput{
		GatheringID: s.testGatheringID,
		ChannelID:   s.testChannelID,
		Event:       event("late", away, speaking),
		Now:         s.at(58),
	})
	s.ErrorIs(err, ErrRecordClosed)

	records, err := s.service.GetRecords(s.ctx, &GetRecordsInput{GatheringID: s.testGatheringID})
	s.Require().NoError(err)
	s.Require().Len(records.Records, 1)
	s.Equal("x", records.Records[0].ParticipantID)
	s.True(records.Records[0].Closed)
}

func (s *LedgerServiceTestSuite) TestSeedAfterFinalizeIsRejected() {
	s.finalize(s.at(60))

	_, err := s.service.Seed(s.ctx, &SeedInput{
		GatheringID: s.testGatheringID,
		ChannelID:   s.testChannelID,
		Member:      &models.Member{ParticipantID: "z", State: s.inChannel(models.VoiceState{})},
		Now:         s.at(0),
	})
	s.ErrorIs(err, ErrRecordClosed)

	records, err := s.service.GetRecords(s.ctx, &GetRecordsInput{GatheringID: s.testGatheringID})
	s.Require().NoError(err)
	s.Empty(records.Records)
}
