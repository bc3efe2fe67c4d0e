package presence

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// Snapshot is a raw platform voice payload. Nil fields were not reported.
type Snapshot struct {
	ChannelID  *string
	SelfMute   *bool
	SelfDeaf   *bool
	ServerMute *bool
	SelfStream *bool
	SelfVideo  *bool
}

// Meta carries the identity of the participant a change belongs to
type Meta struct {
	VenueID       string
	ParticipantID string
	RoleIDs       []string
	ReceivedAt    time.Time
}

// Normalize turns a pair of raw snapshots into a PresenceEvent.
// A field missing from one side takes the other side's value, so it never
// produces an edge. A nil prev means the participant was not connected.
func Normalize(prev, next *Snapshot, meta Meta) *models.PresenceEvent {
	if next == nil {
		next = &Snapshot{}
	}

	var before models.VoiceState
	if prev == nil {
		before = resolve(next, nil)
		before.ChannelID = ""
	} else {
		before = resolve(prev, next)
	}
	after := resolve(next, prev)

	return &models.PresenceEvent{
		VenueID:       meta.VenueID,
		ParticipantID: meta.ParticipantID,
		RoleIDs:       meta.RoleIDs,
		ChannelID:     after.ChannelID,
		Previous:      before,
		Current:       after,

		StartedSpeaking:   before.Muted && !after.Muted,
		StoppedSpeaking:   !before.Muted && after.Muted,
		StoppedStreaming:  before.Streaming && !after.Streaming,
		StoppedCamera:     before.CameraOn && !after.CameraOn,
		BecameServerMuted: !before.ServerMuted && after.ServerMuted,
		ChannelChanged:    before.ChannelID != after.ChannelID,

		ReceivedAt: meta.ReceivedAt,
	}
}

// resolve reads s, falling back to other for absent fields
func resolve(s, other *Snapshot) models.VoiceState {
	pickStr := func(a, b *string) string {
		if a != nil {
			return *a
		}
		if b != nil {
			return *b
		}
		return ""
	}
	pick := func(a, b *bool) bool {
		if a != nil {
			return *a
		}
		if b != nil {
			return *b
		}
		return false
	}
	if other == nil {
		other = &Snapshot{}
	}

	deaf := pick(s.SelfDeaf, other.SelfDeaf)
	return models.VoiceState{
		ChannelID:   pickStr(s.ChannelID, other.ChannelID),
		Muted:       pick(s.SelfMute, other.SelfMute) || deaf,
		Deafened:    deaf,
		ServerMuted: pick(s.ServerMute, other.ServerMute),
		Streaming:   pick(s.SelfStream, other.SelfStream),
		CameraOn:    pick(s.SelfVideo, other.SelfVideo),
	}
}
