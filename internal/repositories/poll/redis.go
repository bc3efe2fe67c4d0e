package poll

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
	pollKeyPrefix    = "poll:"
	venuePollsPrefix = "venue_polls:"

	maxCloseAttempts = 10
)

var (
	// ErrPollNotFound is returned when a poll is not found
	ErrPollNotFound = errors.New("poll not found")

	// ErrCloseConflict is returned when closing kept losing races
	ErrCloseConflict = errors.New("poll close conflict")
)

// Config holds configuration for the Redis poll repository
type Config struct {
	RedisClient *redis.Client
}

type redisRepository struct {
	client *redis.Client
}

// NewRedis creates a new Redis-backed poll repository
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

func pollKey(id string) string {
	return pollKeyPrefix + id
}

func venuePollsKey(venueID string) string {
	return venuePollsPrefix + venueID
}

// SavePoll persists a poll to Redis
func (r *redisRepository) SavePoll(ctx context.Context, input *SavePollInput) error {
	if input == nil || input.Poll == nil {
		return errors.New("input and poll cannot be nil")
	}
	if input.Poll.ID == "" {
		return errors.New("poll ID cannot be empty")
	}

	data, err := json.Marshal(input.Poll)
	if err != nil {
		return fmt.Errorf("failed to marshal poll: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, pollKey(input.Poll.ID), data, 0)
	pipe.ZAdd(ctx, venuePollsKey(input.Poll.VenueID), redis.Z{
		Score:  float64(input.Poll.CreatedAt.UnixNano()),
		Member: input.Poll.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save poll: %w", err)
	}

	return nil
}

// GetPoll retrieves a poll by ID from Redis
func (r *redisRepository) GetPoll(ctx context.Context, input *GetPollInput) (*models.Poll, error) {
	if input == nil || input.PollID == "" {
		return nil, errors.New("input and poll ID cannot be empty")
	}

	return getPoll(ctx, r.client, input.PollID)
}

func getPoll(ctx context.Context, c redis.Cmdable, id string) (*models.Poll, error) {
	data, err := c.Get(ctx, pollKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	var p models.Poll
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal poll: %w", err)
	}

	return &p, nil
}

// ListPolls lists the polls of a venue, newest first
func (r *redisRepository) ListPolls(ctx context.Context, input *ListPollsInput) (*ListPollsOutput, error) {
	if input == nil || input.VenueID == "" {
		return nil, errors.New("input and venue ID cannot be empty")
	}

	ids, err := r.client.ZRevRange(ctx, venuePollsKey(input.VenueID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}

	polls := make([]*models.Poll, 0, len(ids))
	for _, id := range ids {
		p, err := getPoll(ctx, r.client, id)
		if errors.Is(err, ErrPollNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		polls = append(polls, p)
	}

	return &ListPollsOutput{Polls: polls}, nil
}

// ClosePoll marks a poll closed under WATCH; results of the first close win
func (r *redisRepository) ClosePoll(ctx context.Context, input *ClosePollInput) (*ClosePollOutput, error) {
	if input == nil || input.PollID == "" {
		return nil, errors.New("input and poll ID cannot be empty")
	}

	key := pollKey(input.PollID)
	for attempt := 0; attempt < maxCloseAttempts; attempt++ {
		var output *ClosePollOutput
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			p, err := getPoll(ctx, tx, input.PollID)
			if err != nil {
				return err
			}

			if p.Status == models.PollStatusClosed {
				output = &ClosePollOutput{Poll: p}
				return nil
			}

			p.Status = models.PollStatusClosed
			p.Results = input.Results
			p.ClosedAt = input.ClosedAt

			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to marshal poll: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			if err != nil {
				return err
			}

			output = &ClosePollOutput{Poll: p, Changed: true}
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

	return nil, ErrCloseConflict
}
