package discord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	clockMocks "github.com/KirkDiggler/gatherer/internal/common/clock/mocks"
	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/KirkDiggler/gatherer/internal/presence"
	"github.com/KirkDiggler/gatherer/internal/venue"
	venueMocks "github.com/KirkDiggler/gatherer/internal/venue/mocks"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type recordingBus struct {
	mu     sync.Mutex
	events []*models.PresenceEvent
	err    error
}

func (b *recordingBus) Publish(_ context.Context, event *models.PresenceEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Run(ctx context.Context, _ presence.Handler) error {
	<-ctx.Done()
	return nil
}

type IntakeTestSuite struct {
	suite.Suite
	mockCtrl  *gomock.Controller
	mockClock *clockMocks.MockClock
	mockVenue *venueMocks.MockClient
	bus       *recordingBus
	intake    *Intake
	ctx       context.Context
	now       time.Time
}

func (s *IntakeTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockClock = clockMocks.NewMockClock(s.mockCtrl)
	s.mockVenue = venueMocks.NewMockClient(s.mockCtrl)
	s.now = time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC)
	s.mockClock.EXPECT().Now().Return(s.now).AnyTimes()

	s.bus = &recordingBus{}
	intake, err := NewIntake(&IntakeConfig{Bus: s.bus, Venue: s.mockVenue, Clock: s.mockClock})
	s.Require().NoError(err)
	s.intake = intake
	s.ctx = context.Background()
}

func (s *IntakeTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func TestIntakeTestSuite(t *testing.T) {
	suite.Run(t, new(IntakeTestSuite))
}

func update(before, after *discordgo.VoiceState) *discordgo.VoiceStateUpdate {
	return &discordgo.VoiceStateUpdate{VoiceState: after, BeforeUpdate: before}
}

func (s *IntakeTestSuite) TestJoinUsesMemberRoles() {
	after := &discordgo.VoiceState{
		GuildID:   "venue-1",
		UserID:    "user-1",
		ChannelID: "chan-1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "user-1"}, Roles: []string{"r1"}},
	}

	s.Require().NoError(s.intake.Ingest(s.ctx, update(nil, after)))

	s.Require().Len(s.bus.events, 1)
	event := s.bus.events[0]
	s.Equal("venue-1", event.VenueID)
	s.Equal("user-1", event.ParticipantID)
	s.Equal([]string{"r1"}, event.RoleIDs)
	s.Equal("chan-1", event.ChannelID)
	s.Empty(event.Previous.ChannelID)
	s.True(event.ChannelChanged)
	s.Equal(s.now, event.ReceivedAt)
}

func (s *IntakeTestSuite) TestServerMuteEdge() {
	before := &discordgo.VoiceState{GuildID: "venue-1", UserID: "user-1", ChannelID: "chan-1"}
	after := &discordgo.VoiceState{GuildID: "venue-1", UserID: "user-1", ChannelID: "chan-1", Mute: true, SelfDeaf: true}

	s.mockVenue.EXPECT().GetRoles(gomock.Any(), "venue-1", "user-1").Return([]string{"r2"}, nil)

	s.Require().NoError(s.intake.Ingest(s.ctx, update(before, after)))

	s.Require().Len(s.bus.events, 1)
	event := s.bus.events[0]
	s.Equal([]string{"r2"}, event.RoleIDs)
	s.True(event.BecameServerMuted)
	s.True(event.StoppedSpeaking)
	s.True(event.Current.Deafened)
	s.False(event.ChannelChanged)
}

func (s *IntakeTestSuite) TestUnknownMemberHasNoRoles() {
	after := &discordgo.VoiceState{GuildID: "venue-1", UserID: "ghost", ChannelID: "chan-1"}
	s.mockVenue.EXPECT().GetRoles(gomock.Any(), "venue-1", "ghost").Return(nil, venue.ErrVenueNotFound)

	s.Require().NoError(s.intake.Ingest(s.ctx, update(nil, after)))
	s.Require().Len(s.bus.events, 1)
	s.Empty(s.bus.events[0].RoleIDs)
}

func (s *IntakeTestSuite) TestRoleLookupFailure() {
	after := &discordgo.VoiceState{GuildID: "venue-1", UserID: "user-1", ChannelID: "chan-1"}
	s.mockVenue.EXPECT().GetRoles(gomock.Any(), "venue-1", "user-1").Return(nil, errors.New("boom"))

	s.Error(s.intake.Ingest(s.ctx, update(nil, after)))
	s.Empty(s.bus.events)
}

func (s *IntakeTestSuite) TestSkipsBotsAndDirectMessages() {
	bot := &discordgo.VoiceState{
		GuildID:   "venue-1",
		UserID:    "bot-1",
		ChannelID: "chan-1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "bot-1", Bot: true}},
	}
	s.NoError(s.intake.Ingest(s.ctx, update(nil, bot)))
	s.NoError(s.intake.Ingest(s.ctx, update(nil, &discordgo.VoiceState{UserID: "user-1"})))
	s.NoError(s.intake.Ingest(s.ctx, nil))
	s.Empty(s.bus.events)
}

func (s *IntakeTestSuite) TestPublishFailure() {
	s.bus.err = presence.ErrBusClosed
	after := &discordgo.VoiceState{
		GuildID:   "venue-1",
		UserID:    "user-1",
		ChannelID: "chan-1",
		Member:    &discordgo.Member{Roles: []string{}},
	}

	s.ErrorIs(s.intake.Ingest(s.ctx, update(nil, after)), presence.ErrBusClosed)
}

func (s *IntakeTestSuite) TestSnapshot() {
	s.Nil(Snapshot(nil))

	snap := Snapshot(&discordgo.VoiceState{ChannelID: "c", SelfMute: true, SelfStream: true})
	s.Require().NotNil(snap)
	s.Equal("c", *snap.ChannelID)
	s.True(*snap.SelfMute)
	s.False(*snap.SelfDeaf)
	s.False(*snap.ServerMute)
	s.True(*snap.SelfStream)
	s.False(*snap.SelfVideo)
}

func (s *IntakeTestSuite) TestNewIntakeValidation() {
	_, err := NewIntake(nil)
	s.Error(err)

	_, err = NewIntake(&IntakeConfig{Venue: s.mockVenue, Clock: s.mockClock})
	s.Error(err)
}
