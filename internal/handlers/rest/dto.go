package rest

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/KirkDiggler/gatherer/internal/services/gathering"
)

// CreateGatheringRequest is the body of POST /gathering
type CreateGatheringRequest struct {
	VenueID      string    `json:"venue_id"`
	ChannelID    string    `json:"channel_id"`
	RoleIDs      []string  `json:"role_ids"`
	AllCanAttend bool      `json:"all_can_attend"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`

	// Weight defaults to 1 when omitted
	Weight *float64 `json:"weight"`

	CreatedBy string `json:"created_by"`
}

// GatheringResponse is the JSON view of a gathering
type GatheringResponse struct {
	ID              string    `json:"id"`
	VenueID         string    `json:"venue_id"`
	ChannelID       string    `json:"channel_id"`
	RoleIDs         []string  `json:"role_ids"`
	AllCanAttend    bool      `json:"all_can_attend"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	Weight          float64   `json:"weight"`
	Status          string    `json:"status"`
	DurationSeconds float64   `json:"duration_seconds"`
	EligibleRoles   string    `json:"eligible_roles"`
	CreatedBy       string    `json:"created_by,omitempty"`
}

// ScoreResponse is the JSON view of one participant's result
type ScoreResponse struct {
	ParticipantID    string  `json:"participant_id"`
	OpenMicSeconds   float64 `json:"open_mic_seconds"`
	StreamingSeconds float64 `json:"streaming_seconds"`
	CameraSeconds    float64 `json:"camera_seconds"`
	ServerMuteCount  int     `json:"server_mute_count"`
	Score            float64 `json:"score"`
}

// ResultsResponse is the body of GET /gathering/:id/results
type ResultsResponse struct {
	Gathering *GatheringResponse `json:"gathering"`
	Scores    []*ScoreResponse   `json:"scores"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func newGatheringResponse(g *models.Gathering) *GatheringResponse {
	return &GatheringResponse{
		ID:              g.ID,
		VenueID:         g.VenueID,
		ChannelID:       g.ChannelID,
		RoleIDs:         g.RoleIDs,
		AllCanAttend:    g.AllCanAttend,
		StartAt:         g.StartAt,
		EndAt:           g.EndAt,
		Weight:          g.Weight,
		Status:          string(g.Status),
		DurationSeconds: g.Duration().Seconds(),
		EligibleRoles:   gathering.EligibleRoles(g),
		CreatedBy:       g.CreatedBy,
	}
}

func newResultsResponse(g *models.Gathering, scores []*models.ParticipantScore) *ResultsResponse {
	out := &ResultsResponse{
		Gathering: newGatheringResponse(g),
		Scores:    make([]*ScoreResponse, 0, len(scores)),
	}
	for _, sc := range scores {
		out.Scores = append(out.Scores, &ScoreResponse{
			ParticipantID:    sc.ParticipantID,
			OpenMicSeconds:   sc.OpenMicSeconds,
			StreamingSeconds: sc.StreamingSeconds,
			CameraSeconds:    sc.CameraSeconds,
			ServerMuteCount:  sc.ServerMuteCount,
			Score:            sc.Score,
		})
	}
	return out
}
