package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type NormalizeTestSuite struct {
	suite.Suite
	meta Meta
}

func (s *NormalizeTestSuite) SetupTest() {
	s.meta = Meta{
		VenueID:       "venue-1",
		ParticipantID: "user-1",
		RoleIDs:       []string{"role-a"},
		ReceivedAt:    time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeTestSuite(t *testing.T) {
	suite.Run(t, new(NormalizeTestSuite))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func (s *NormalizeTestSuite) TestUnmuteStartsSpeaking() {
	prev := &Snapshot{ChannelID: strPtr("chan-1"), SelfMute: boolPtr(true)}
	next := &Snapshot{ChannelID: strPtr("chan-1"), SelfMute: boolPtr(false)}

	event := Normalize(prev, next, s.meta)

	s.True(event.StartedSpeaking)
	s.False(event.StoppedSpeaking)
	s.False(event.ChannelChanged)
	s.Equal("chan-1", event.ChannelID)
	s.Equal("venue-1", event.VenueID)
	s.Equal("user-1", event.ParticipantID)
	s.Equal([]string{"role-a"}, event.RoleIDs)
	s.Equal(s.meta.ReceivedAt, event.ReceivedAt)
}

func (s *NormalizeTestSuite) TestDeafenCountsAsMuted() {
	prev := &Snapshot{ChannelID: strPtr("chan-1"), SelfMute: boolPtr(false), SelfDeaf: boolPtr(false)}
	next := &Snapshot{ChannelID: strPtr("chan-1"), SelfMute: boolPtr(false), SelfDeaf: boolPtr(true)}

	event := Normalize(prev, next, s.meta)

	s.True(event.StoppedSpeaking)
	s.True(event.Current.Muted)
	s.True(event.Current.Deafened)
}

func (s *NormalizeTestSuite) TestAbsentFieldsProduceNoEdges() {
	prev := &Snapshot{
		ChannelID:  strPtr("chan-1"),
		SelfMute:   boolPtr(false),
		SelfStream: boolPtr(true),
		SelfVideo:  boolPtr(true),
		ServerMute: boolPtr(false),
	}
	next := &Snapshot{SelfMute: boolPtr(true)}

	event := Normalize(prev, next, s.meta)

	s.True(event.StoppedSpeaking)
	s.False(event.StoppedStreaming)
	s.False(event.StoppedCamera)
	s.False(event.ChannelChanged)
	s.False(event.BecameServerMuted)
	s.True(event.Current.Streaming)
	s.True(event.Current.CameraOn)
	s.Equal("chan-1", event.Current.ChannelID)
}

func (s *NormalizeTestSuite) TestNilPreviousIsJoin() {
	next := &Snapshot{
		ChannelID:  strPtr("chan-1"),
		SelfMute:   boolPtr(false),
		SelfStream: boolPtr(true),
	}

	event := Normalize(nil, next, s.meta)

	s.True(event.ChannelChanged)
	s.Equal("", event.Previous.ChannelID)
	s.Equal("chan-1", event.Current.ChannelID)
	s.False(event.StartedSpeaking)
	s.False(event.StoppedStreaming)
	s.True(event.Previous.Streaming)
}

func (s *NormalizeTestSuite) TestLeaveChangesChannel() {
	prev := &Snapshot{ChannelID: strPtr("chan-1"), SelfMute: boolPtr(false)}
	next := &Snapshot{ChannelID: strPtr("")}

	event := Normalize(prev, next, s.meta)

	s.True(event.ChannelChanged)
	s.Equal("", event.ChannelID)
	s.Equal("chan-1", event.Previous.ChannelID)
}

func (s *NormalizeTestSuite) TestDerivedEdges() {
	testCases := []struct {
		name  string
		prev  *Snapshot
		next  *Snapshot
		check func(stoppedStreaming, stoppedCamera, serverMuted bool)
	}{
		{
			name: "stream stops",
			prev: &Snapshot{SelfStream: boolPtr(true)},
			next: &Snapshot{SelfStream: boolPtr(false)},
			check: func(stoppedStreaming, stoppedCamera, serverMuted bool) {
				s.True(stoppedStreaming)
				s.False(stoppedCamera)
				s.False(serverMuted)
			},
		},
		{
			name: "camera stops",
			prev: &Snapshot{SelfVideo: boolPtr(true)},
			next: &Snapshot{SelfVideo: boolPtr(false)},
			check: func(stoppedStreaming, stoppedCamera, serverMuted bool) {
				s.False(stoppedStreaming)
				s.True(stoppedCamera)
				s.False(serverMuted)
			},
		},
		{
			name: "moderator mutes",
			prev: &Snapshot{ServerMute: boolPtr(false)},
			next: &Snapshot{ServerMute: boolPtr(true)},
			check: func(stoppedStreaming, stoppedCamera, serverMuted bool) {
				s.False(stoppedStreaming)
				s.False(stoppedCamera)
				s.True(serverMuted)
			},
		},
		{
			name: "server mute already on",
			prev: &Snapshot{ServerMute: boolPtr(true)},
			next: &Snapshot{ServerMute: boolPtr(true)},
			check: func(stoppedStreaming, stoppedCamera, serverMuted bool) {
				s.False(serverMuted)
			},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			event := Normalize(tc.prev, tc.next, s.meta)
			tc.check(event.StoppedStreaming, event.StoppedCamera, event.BecameServerMuted)
		})
	}
}
