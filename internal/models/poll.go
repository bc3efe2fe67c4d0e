package models

import (
	"time"
)

// PollStatus represents the state of a poll
type PollStatus string

const (
	PollStatusOpen   PollStatus = "open"
	PollStatusClosed PollStatus = "closed"
)

// PollOption is one answer of a poll, voted on with a reaction
type PollOption struct {
	// Emoji is the reaction used to vote for this option
	Emoji string

	// Label describes the option
	Label string
}

// Poll is a reaction poll closed after a fixed delay
type Poll struct {
	ID        string
	VenueID   string
	ChannelID string
	MessageID string
	Question  string
	Options   []PollOption

	// RoleIDs restrict who may vote unless AllCanVote is set
	RoleIDs    []string
	AllCanVote bool

	// CloseDelay is measured from CreatedAt
	CloseDelay time.Duration

	CreatedBy string
	CreatedAt time.Time
	ClosesAt  time.Time

	Status PollStatus

	// Results maps an option emoji to the number of eligible votes
	Results map[string]int

	ClosedAt time.Time
}

// IsEligible reports whether a member holding roleIDs may vote
func (p *Poll) IsEligible(roleIDs []string) bool {
	return rolesIntersect(p.AllCanVote, p.RoleIDs, roleIDs)
}
