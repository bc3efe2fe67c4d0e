// Package score turns finalized ledger records into weighted participation scores.
package score

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
)

const (
	// AttendanceShare is the fraction of the gathering a participant must
	// spend on an open microphone to earn the base score. The comparison is strict.
	AttendanceShare = 0.66

	// BasePoints is awarded per unit of weight for attendance
	BasePoints = 100.0

	// BonusShare of the base points is added for streaming or camera use and
	// taken away for repeated server mutes
	BonusShare = 0.15

	// ActivityThreshold is how long streaming or camera must run to count
	ActivityThreshold = 60 * time.Second

	// MutePenaltyThreshold is the number of server mutes tolerated before the penalty
	MutePenaltyThreshold = 1
)

// Calculate scores one finalized record. The result is not clamped and can be negative.
func Calculate(record *models.ParticipantRecord, duration time.Duration, weight float64) float64 {
	if record == nil {
		return 0
	}

	bonus := BonusShare * weight * BasePoints
	var total float64

	if record.OpenMicSeconds > AttendanceShare*duration.Seconds() {
		total += weight * BasePoints
	}
	if record.StreamingSeconds > ActivityThreshold.Seconds() {
		total += bonus
	}
	if record.CameraSeconds > ActivityThreshold.Seconds() {
		total += bonus
	}
	if record.ServerMuteCount > MutePenaltyThreshold {
		total -= bonus
	}

	return total
}

// ForGathering scores every record of a gathering
func ForGathering(g *models.Gathering, records []*models.ParticipantRecord) []*models.ParticipantScore {
	scores := make([]*models.ParticipantScore, 0, len(records))
	for _, r := range records {
		scores = append(scores, &models.ParticipantScore{
			GatheringID:      g.ID,
			ParticipantID:    r.ParticipantID,
			OpenMicSeconds:   r.OpenMicSeconds,
			StreamingSeconds: r.StreamingSeconds,
			CameraSeconds:    r.CameraSeconds,
			ServerMuteCount:  r.ServerMuteCount,
			Score:            Calculate(r, g.Duration(), g.Weight),
		})
	}
	return scores
}
