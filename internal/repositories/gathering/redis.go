package gathering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for Redis
	gatheringKeyPrefix    = "gathering:"
	venueIndexPrefix      = "venue_gatherings:"
	venueOpenIndexPrefix  = "venue_open_gatherings:"
	resultsKeyPrefix      = "gathering_results:"
	maxTransitionAttempts = 10
)

var (
	// ErrGatheringNotFound is returned when a gathering is not found
	ErrGatheringNotFound = errors.New("gathering not found")

	// ErrGatheringClosed is returned when a transition would leave the closed status
	ErrGatheringClosed = errors.New("gathering is closed")

	// ErrResultsNotFound is returned when a gathering has no stored results
	ErrResultsNotFound = errors.New("results not found")

	// ErrTransitionConflict is returned when a transition kept losing races
	ErrTransitionConflict = errors.New("gathering transition conflict")
)

// Config holds configuration for the Redis gathering repository
type Config struct {
	RedisClient *redis.Client
}

type redisRepository struct {
	client *redis.Client
}

// NewRedis creates a new Redis-backed gathering repository
func NewRedis(cfg *Config) (*redisRepository, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	if err := cfg.RedisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisRepository{
		client: cfg.RedisClient,
	}, nil
}

func gatheringKey(id string) string {
	return gatheringKeyPrefix + id
}

func venueIndexKey(venueID string) string {
	return venueIndexPrefix + venueID
}

func venueOpenIndexKey(venueID string) string {
	return venueOpenIndexPrefix + venueID
}

func resultsKey(id string) string {
	return resultsKeyPrefix + id
}

// SaveGathering persists a gathering to Redis
func (r *redisRepository) SaveGathering(ctx context.Context, input *SaveGatheringInput) error {
	if input == nil || input.Gathering == nil {
		return errors.New("input and gathering cannot be nil")
	}
	if input.Gathering.ID == "" {
		return errors.New("gathering ID cannot be empty")
	}

	data, err := json.Marshal(input.Gathering)
	if err != nil {
		return fmt.Errorf("failed to marshal gathering: %w", err)
	}

	pipe := r.client.TxPipeline()
	writeGathering(ctx, pipe, input.Gathering, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save gathering: %w", err)
	}

	return nil
}

// writeGathering queues the document write and index updates
func writeGathering(ctx context.Context, pipe redis.Pipeliner, g *models.Gathering, data []byte) {
	pipe.Set(ctx, gatheringKey(g.ID), data, 0)
	pipe.ZAdd(ctx, venueIndexKey(g.VenueID), redis.Z{
		Score:  float64(g.StartAt.Unix()),
		Member: g.ID,
	})
	if g.Status.IsOpen() {
		pipe.SAdd(ctx, venueOpenIndexKey(g.VenueID), g.ID)
	} else {
		pipe.SRem(ctx, venueOpenIndexKey(g.VenueID), g.ID)
	}
}

// GetGathering retrieves a gathering by ID from Redis
func (r *redisRepository) GetGathering(ctx context.Context, input *GetGatheringInput) (*models.Gathering, error) {
	if input == nil || input.GatheringID == "" {
		return nil, errors.New("input and gathering ID cannot be empty")
	}

	return getGathering(ctx, r.client, input.GatheringID)
}

func getGathering(ctx context.Context, c redis.Cmdable, id string) (*models.Gathering, error) {
	data, err := c.Get(ctx, gatheringKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrGatheringNotFound
		}
		return nil, fmt.Errorf("failed to get gathering: %w", err)
	}

	var g models.Gathering
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gathering: %w", err)
	}

	return &g, nil
}

// ListGatherings lists every gathering of a venue ordered by start time
func (r *redisRepository) ListGatherings(ctx context.Context, input *ListGatheringsInput) (*ListGatheringsOutput, error) {
	if input == nil || input.VenueID == "" {
		return nil, errors.New("input and venue ID cannot be empty")
	}

	ids, err := r.client.ZRange(ctx, venueIndexKey(input.VenueID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list gatherings: %w", err)
	}

	gatherings, err := r.loadGatherings(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &ListGatheringsOutput{Gatherings: gatherings}, nil
}

// ListOpenGatherings lists the open gatherings of a venue
func (r *redisRepository) ListOpenGatherings(ctx context.Context, input *ListOpenGatheringsInput) (*ListGatheringsOutput, error) {
	if input == nil || input.VenueID == "" {
		return nil, errors.New("input and venue ID cannot be empty")
	}

	ids, err := r.client.SMembers(ctx, venueOpenIndexKey(input.VenueID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list open gatherings: %w", err)
	}

	gatherings, err := r.loadGatherings(ctx, ids)
	if err != nil {
		return nil, err
	}

	// the index may briefly lag the document
	open := gatherings[:0]
	for _, g := range gatherings {
		if g.Status.IsOpen() {
			open = append(open, g)
		}
	}

	return &ListGatheringsOutput{Gatherings: open}, nil
}

// loadGatherings fetches documents for ids, skipping ids that vanished
func (r *redisRepository) loadGatherings(ctx context.Context, ids []string) ([]*models.Gathering, error) {
	if len(ids) == 0 {
		return []*models.Gathering{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gatheringKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get gatherings: %w", err)
	}

	gatherings := make([]*models.Gathering, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var g models.Gathering
		if err := json.Unmarshal([]byte(s), &g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gathering: %w", err)
		}
		gatherings = append(gatherings, &g)
	}

	return gatherings, nil
}

// TransitionGathering changes status under WATCH so concurrent open and close
// calls cannot move a closed gathering back
func (r *redisRepository) TransitionGathering(ctx context.Context, input *TransitionGatheringInput) (*TransitionGatheringOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, errors.New("input and gathering ID cannot be empty")
	}
	if input.To == models.GatheringStatusScheduled {
		return nil, errors.New("cannot transition back to scheduled")
	}

	key := gatheringKey(input.GatheringID)
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		var output *TransitionGatheringOutput
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			g, err := getGathering(ctx, tx, input.GatheringID)
			if err != nil {
				return err
			}

			if g.Status == input.To {
				output = &TransitionGatheringOutput{Gathering: g}
				return nil
			}
			if g.Status.IsClosed() {
				return ErrGatheringClosed
			}

			g.Status = input.To
			switch input.To {
			case models.GatheringStatusOpen:
				g.OpenedAt = input.At
			case models.GatheringStatusClosed:
				g.ClosedAt = input.At
			}

			data, err := json.Marshal(g)
			if err != nil {
				return fmt.Errorf("failed to marshal gathering: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				writeGathering(ctx, pipe, g, data)
				return nil
			})
			if err != nil {
				return err
			}

			output = &TransitionGatheringOutput{Gathering: g, Changed: true}
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return output, nil
	}

	return nil, ErrTransitionConflict
}

// DeleteGathering removes a gathering from Redis
func (r *redisRepository) DeleteGathering(ctx context.Context, input *DeleteGatheringInput) error {
	if input == nil || input.GatheringID == "" {
		return errors.New("input and gathering ID cannot be empty")
	}

	g, err := r.GetGathering(ctx, &GetGatheringInput{GatheringID: input.GatheringID})
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, gatheringKey(g.ID), resultsKey(g.ID))
	pipe.ZRem(ctx, venueIndexKey(g.VenueID), g.ID)
	pipe.SRem(ctx, venueOpenIndexKey(g.VenueID), g.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete gathering: %w", err)
	}

	return nil
}

// SaveResults stores the scores of a gathering
func (r *redisRepository) SaveResults(ctx context.Context, input *SaveResultsInput) error {
	if input == nil || input.GatheringID == "" {
		return errors.New("input and gathering ID cannot be empty")
	}

	scores := input.Scores
	if scores == nil {
		scores = []*models.ParticipantScore{}
	}

	data, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := r.client.Set(ctx, resultsKey(input.GatheringID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	return nil
}

// GetResults retrieves the scores of a gathering
func (r *redisRepository) GetResults(ctx context.Context, input *GetResultsInput) ([]*models.ParticipantScore, error) {
	if input == nil || input.GatheringID == "" {
		return nil, errors.New("input and gathering ID cannot be empty")
	}

	data, err := r.client.Get(ctx, resultsKey(input.GatheringID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResultsNotFound
		}
		return nil, fmt.Errorf("failed to get results: %w", err)
	}

	var scores []*models.ParticipantScore
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	return scores, nil
}
