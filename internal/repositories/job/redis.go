package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for Redis
	jobKeyPrefix    = "job:"
	targetKeyPrefix = "jobs:target:"
	dueKey          = "jobs:due"
	deadKey         = "jobs:dead"
)

var (
	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotClaimable is returned when a job is not due, already held or dead
	ErrJobNotClaimable = errors.New("job not claimable")

	// ErrLockLost is returned when the caller no longer holds the job
	ErrLockLost = errors.New("job lock lost")
)

// Config holds configuration for the Redis job repository
type Config struct {
	RedisClient *redis.Client
}

type redisRepository struct {
	client *redis.Client
}

// NewRedis creates a new Redis-backed job repository
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

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func targetKey(targetID string) string {
	return targetKeyPrefix + targetID
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// SaveJob writes the job as pending and due at FireAt. Rescheduling an
// existing job resets its attempts and any dead status.
func (r *redisRepository) SaveJob(ctx context.Context, input *SaveJobInput) error {
	if input == nil || input.Job == nil {
		return errors.New("input and job cannot be nil")
	}
	j := input.Job
	if j.ID == "" || j.TargetID == "" || j.Kind == "" {
		return errors.New("job ID, kind and target ID cannot be empty")
	}

	fireAt := toMillis(j.FireAt)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, jobKey(j.ID), map[string]interface{}{
		"kind":         string(j.Kind),
		"target_id":    j.TargetID,
		"fire_at":      fireAt,
		"lock_token":   "",
		"locked_until": 0,
		"attempts":     0,
		"last_error":   "",
		"status":       string(models.JobStatusPending),
		"created_at":   toMillis(j.CreatedAt),
	})
	pipe.ZAdd(ctx, dueKey, redis.Z{Score: float64(fireAt), Member: j.ID})
	pipe.SAdd(ctx, targetKey(j.TargetID), j.ID)
	pipe.SRem(ctx, deadKey, j.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by ID
func (r *redisRepository) GetJob(ctx context.Context, input *GetJobInput) (*models.ScheduledJob, error) {
	if input == nil || input.JobID == "" {
		return nil, errors.New("input and job ID cannot be empty")
	}

	fields, err := r.client.HGetAll(ctx, jobKey(input.JobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	attempts, _ := strconv.Atoi(fields["attempts"])
	return &models.ScheduledJob{
		ID:          input.JobID,
		Kind:        models.JobKind(fields["kind"]),
		TargetID:    fields["target_id"],
		FireAt:      fromMillis(fields["fire_at"]),
		LockToken:   fields["lock_token"],
		LockedUntil: fromMillis(fields["locked_until"]),
		Attempts:    attempts,
		LastError:   fields["last_error"],
		Status:      models.JobStatus(fields["status"]),
		CreatedAt:   fromMillis(fields["created_at"]),
	}, nil
}

// ListDueJobIDs lists jobs due at or before Now, oldest first
func (r *redisRepository) ListDueJobIDs(ctx context.Context, input *ListDueJobIDsInput) ([]string, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}

	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(input.Now.UnixMilli(), 10),
	}
	if input.Limit > 0 {
		opt.Count = int64(input.Limit)
	}

	ids, err := r.client.ZRangeByScore(ctx, dueKey, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}

	return ids, nil
}

// ClaimJob takes the lease on a job and returns it as held by Token
func (r *redisRepository) ClaimJob(ctx context.Context, input *ClaimJobInput) (*models.ScheduledJob, error) {
	if input == nil || input.JobID == "" || input.Token == "" {
		return nil, errors.New("input, job ID and token cannot be empty")
	}
	if !input.LeaseUntil.After(input.Now) {
		return nil, errors.New("lease must end after now")
	}

	claimed, err := claimScript.Run(ctx, r.client,
		[]string{jobKey(input.JobID), dueKey},
		input.Token, input.Now.UnixMilli(), input.LeaseUntil.UnixMilli(), input.JobID,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if claimed == 0 {
		return nil, ErrJobNotClaimable
	}

	return r.GetJob(ctx, &GetJobInput{JobID: input.JobID})
}

// CompleteJob deletes a held job
func (r *redisRepository) CompleteJob(ctx context.Context, input *CompleteJobInput) error {
	if input == nil || input.Job == nil {
		return errors.New("input and job cannot be nil")
	}
	j := input.Job

	done, err := completeScript.Run(ctx, r.client,
		[]string{jobKey(j.ID), dueKey, targetKey(j.TargetID)},
		j.LockToken, j.ID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if done == 0 {
		return ErrLockLost
	}

	return nil
}

// ReleaseJob drops the lease and makes the job due again at FireAt
func (r *redisRepository) ReleaseJob(ctx context.Context, input *ReleaseJobInput) error {
	if input == nil || input.Job == nil {
		return errors.New("input and job cannot be nil")
	}
	j := input.Job

	done, err := releaseScript.Run(ctx, r.client,
		[]string{jobKey(j.ID), dueKey},
		j.LockToken, j.ID, toMillis(input.FireAt), input.LastError,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to release job: %w", err)
	}
	if done == 0 {
		return ErrLockLost
	}

	return nil
}

// BuryJob moves a held job to the dead set
func (r *redisRepository) BuryJob(ctx context.Context, input *BuryJobInput) error {
	if input == nil || input.Job == nil {
		return errors.New("input and job cannot be nil")
	}
	j := input.Job

	done, err := buryScript.Run(ctx, r.client,
		[]string{jobKey(j.ID), dueKey, deadKey},
		j.LockToken, j.ID, input.LastError,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to bury job: %w", err)
	}
	if done == 0 {
		return ErrLockLost
	}

	return nil
}

// ListJobsByTarget lists the jobs scheduled for a target
func (r *redisRepository) ListJobsByTarget(ctx context.Context, input *ListJobsByTargetInput) ([]*models.ScheduledJob, error) {
	if input == nil || input.TargetID == "" {
		return nil, errors.New("input and target ID cannot be empty")
	}

	ids, err := r.client.SMembers(ctx, targetKey(input.TargetID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list target jobs: %w", err)
	}

	return r.getJobs(ctx, ids)
}

// DeleteJobsByTarget removes every job of a target and reports how many
func (r *redisRepository) DeleteJobsByTarget(ctx context.Context, input *DeleteJobsByTargetInput) (int, error) {
	if input == nil || input.TargetID == "" {
		return 0, errors.New("input and target ID cannot be empty")
	}

	ids, err := r.client.SMembers(ctx, targetKey(input.TargetID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list target jobs: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, jobKey(id))
		pipe.ZRem(ctx, dueKey, id)
		pipe.SRem(ctx, deadKey, id)
	}
	pipe.Del(ctx, targetKey(input.TargetID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete target jobs: %w", err)
	}

	return len(ids), nil
}

// ListDeadJobs lists buried jobs
func (r *redisRepository) ListDeadJobs(ctx context.Context) ([]*models.ScheduledJob, error) {
	ids, err := r.client.SMembers(ctx, deadKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead jobs: %w", err)
	}

	return r.getJobs(ctx, ids)
}

func (r *redisRepository) getJobs(ctx context.Context, ids []string) ([]*models.ScheduledJob, error) {
	jobs := make([]*models.ScheduledJob, 0, len(ids))
	for _, id := range ids {
		j, err := r.GetJob(ctx, &GetJobInput{JobID: id})
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
