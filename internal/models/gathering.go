package models

import (
	"time"
)

// GatheringStatus represents where a gathering is in its lifecycle
type GatheringStatus string

const (
	// GatheringStatusScheduled indicates the gathering has been created but has not started
	GatheringStatusScheduled GatheringStatus = "scheduled"

	// GatheringStatusOpen indicates the gathering window is running and presence is being tracked
	GatheringStatusOpen GatheringStatus = "open"

	// GatheringStatusClosed indicates the gathering has been finalized and scored
	GatheringStatusClosed GatheringStatus = "closed"
)

// IsOpen reports whether presence events should be accounted for
func (s GatheringStatus) IsOpen() bool {
	return s == GatheringStatusOpen
}

// IsClosed reports whether the gathering has been finalized
func (s GatheringStatus) IsClosed() bool {
	return s == GatheringStatusClosed
}

// Gathering is a time-boxed community event held in a voice channel
type Gathering struct {
	// ID is the unique identifier for the gathering
	ID string

	// VenueID is the Discord guild the gathering is held in
	VenueID string

	// ChannelID is the voice channel where presence is measured
	ChannelID string

	// RoleIDs are the roles eligible to attend, in the order they were given
	RoleIDs []string

	// AllCanAttend opens the gathering to every member regardless of roles
	AllCanAttend bool

	// StartAt is when the gathering opens
	StartAt time.Time

	// EndAt is when the gathering closes
	EndAt time.Time

	// Weight multiplies the participation score
	Weight float64

	// Status is the current lifecycle state
	Status GatheringStatus

	// CreatedBy is the user who requested the gathering
	CreatedBy string

	CreatedAt time.Time
	OpenedAt  time.Time
	ClosedAt  time.Time
}

// Duration is the length of the gathering window
func (g *Gathering) Duration() time.Duration {
	return g.EndAt.Sub(g.StartAt)
}

// IsEligible reports whether a member holding roleIDs may attend
func (g *Gathering) IsEligible(roleIDs []string) bool {
	return rolesIntersect(g.AllCanAttend, g.RoleIDs, roleIDs)
}

func rolesIntersect(all bool, eligible, held []string) bool {
	if all {
		return true
	}
	for _, want := range eligible {
		for _, have := range held {
			if want == have {
				return true
			}
		}
	}
	return false
}
