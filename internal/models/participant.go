package models

import (
	"time"
)

// Activity names a timed activity tracked by the ledger
type Activity string

const (
	// ActivityOpenMic is time spent in the channel with an audible microphone
	ActivityOpenMic Activity = "open_mic"

	// ActivityStreaming is time spent screen sharing
	ActivityStreaming Activity = "streaming"

	// ActivityCamera is time spent with the camera on
	ActivityCamera Activity = "camera"
)

// Activities lists every timed activity in accounting order
var Activities = []Activity{ActivityOpenMic, ActivityStreaming, ActivityCamera}

// ParticipantRecord is the ledger entry for one participant in one gathering
type ParticipantRecord struct {
	// GatheringID and ParticipantID together identify the record
	GatheringID   string
	ParticipantID string

	// Cumulative seconds per completed activity interval
	OpenMicSeconds   float64
	StreamingSeconds float64
	CameraSeconds    float64

	// ServerMuteCount counts how many times a moderator muted the participant
	ServerMuteCount int

	// Current activity flags
	Muted       bool
	ServerMuted bool
	Streaming   bool
	CameraOn    bool
	InChannel   bool

	// Anchors mark the last time the matching activity started or stopped
	OpenMicAnchor   time.Time
	StreamingAnchor time.Time
	CameraAnchor    time.Time

	// JoinedAt is when the record was first created
	JoinedAt time.Time

	// LastEventAt is the receipt time of the latest applied event
	LastEventAt time.Time

	// Closed records no longer accept counter mutations
	Closed   bool
	ClosedAt time.Time
}

// IsActive reports whether the activity is currently running for the record
func (r *ParticipantRecord) IsActive(a Activity) bool {
	if !r.InChannel {
		return false
	}
	switch a {
	case ActivityOpenMic:
		return !r.Muted && !r.ServerMuted
	case ActivityStreaming:
		return r.Streaming
	case ActivityCamera:
		return r.CameraOn
	}
	return false
}

// Anchor returns the anchor timestamp for an activity
func (r *ParticipantRecord) Anchor(a Activity) time.Time {
	switch a {
	case ActivityOpenMic:
		return r.OpenMicAnchor
	case ActivityStreaming:
		return r.StreamingAnchor
	case ActivityCamera:
		return r.CameraAnchor
	}
	return time.Time{}
}

// SetAnchor moves the anchor timestamp for an activity
func (r *ParticipantRecord) SetAnchor(a Activity, t time.Time) {
	switch a {
	case ActivityOpenMic:
		r.OpenMicAnchor = t
	case ActivityStreaming:
		r.StreamingAnchor = t
	case ActivityCamera:
		r.CameraAnchor = t
	}
}

// AddSeconds credits a completed interval to an activity
func (r *ParticipantRecord) AddSeconds(a Activity, seconds float64) {
	switch a {
	case ActivityOpenMic:
		r.OpenMicSeconds += seconds
	case ActivityStreaming:
		r.StreamingSeconds += seconds
	case ActivityCamera:
		r.CameraSeconds += seconds
	}
}

// Seconds returns the cumulative seconds for an activity
func (r *ParticipantRecord) Seconds(a Activity) float64 {
	switch a {
	case ActivityOpenMic:
		return r.OpenMicSeconds
	case ActivityStreaming:
		return r.StreamingSeconds
	case ActivityCamera:
		return r.CameraSeconds
	}
	return 0
}

// ApplyState copies a voice state onto the record flags relative to channelID
func (r *ParticipantRecord) ApplyState(state VoiceState, channelID string) {
	r.Muted = state.Muted
	r.ServerMuted = state.ServerMuted
	r.Streaming = state.Streaming
	r.CameraOn = state.CameraOn
	r.InChannel = channelID != "" && state.ChannelID == channelID
}

// ParticipantScore is the persisted result for one participant of a closed gathering
type ParticipantScore struct {
	GatheringID      string
	ParticipantID    string
	OpenMicSeconds   float64
	StreamingSeconds float64
	CameraSeconds    float64
	ServerMuteCount  int
	Score            float64
}
