package models

import (
	"time"
)

// VoiceState is the canonical activity snapshot of a participant
type VoiceState struct {
	// ChannelID is the voice channel the participant is in, empty when not connected
	ChannelID string

	// Muted is true when the participant muted or deafened themselves
	Muted bool

	// Deafened is true when the participant deafened themselves
	Deafened bool

	// ServerMuted is true when a moderator muted the participant
	ServerMuted bool

	// Streaming is true while the participant shares their screen
	Streaming bool

	// CameraOn is true while the participant's camera is on
	CameraOn bool
}

// PresenceEvent is a normalized presence change, never persisted
type PresenceEvent struct {
	// VenueID is the guild the change happened in
	VenueID string

	// ParticipantID is the user whose state changed
	ParticipantID string

	// RoleIDs are the roles the participant held when the change was observed
	RoleIDs []string

	// ChannelID is the channel the participant is now in; empty means they left
	ChannelID string

	Previous VoiceState
	Current  VoiceState

	StartedSpeaking   bool
	StoppedSpeaking   bool
	StoppedStreaming  bool
	StoppedCamera     bool
	BecameServerMuted bool
	ChannelChanged    bool

	// ReceivedAt is the wall clock of the accounting node at receipt
	ReceivedAt time.Time
}

// Member is a venue member with their current voice snapshot
type Member struct {
	ParticipantID string
	RoleIDs       []string
	State         VoiceState
}
