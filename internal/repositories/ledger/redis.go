package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for Redis
	recordKeyPrefix  = "ledger:"
	membersKeyPrefix = "ledger_members:"
	closedKeyPrefix  = "ledger_closed:"

	maxUpdateAttempts = 50
)

var (
	// ErrRecordNotFound is returned when a record is not found
	ErrRecordNotFound = errors.New("participant record not found")

	// ErrUpdateConflict is returned when an update kept losing races
	ErrUpdateConflict = errors.New("participant record update conflict")

	// ErrLedgerClosed is returned when a write needs an open ledger and the
	// gathering's ledger has been closed
	ErrLedgerClosed = errors.New("gathering ledger is closed")
)

// Config holds configuration for the Redis ledger repository
type Config struct {
	RedisClient *redis.Client
}

type redisRepository struct {
	client *redis.Client
}

// NewRedis creates a new Redis-backed ledger repository
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

func recordKey(gatheringID, participantID string) string {
	return fmt.Sprintf("%s%s:%s", recordKeyPrefix, gatheringID, participantID)
}

func membersKey(gatheringID string) string {
	return membersKeyPrefix + gatheringID
}

func closedKey(gatheringID string) string {
	return closedKeyPrefix + gatheringID
}

func checkOpen(ctx context.Context, tx *redis.Tx, gatheringID string) error {
	closed, err := tx.Exists(ctx, closedKey(gatheringID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check ledger state: %w", err)
	}
	if closed > 0 {
		return ErrLedgerClosed
	}
	return nil
}

// CreateRecord stores a record with SETNX so an existing record always wins.
// The closed marker is watched so a record cannot appear after CloseLedger.
func (r *redisRepository) CreateRecord(ctx context.Context, input *CreateRecordInput) (*CreateRecordOutput, error) {
	if input == nil || input.Record == nil {
		return nil, errors.New("input and record cannot be nil")
	}
	record := input.Record
	if record.GatheringID == "" || record.ParticipantID == "" {
		return nil, errors.New("gathering ID and participant ID cannot be empty")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal participant record: %w", err)
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var created *redis.BoolCmd
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			if err := checkOpen(ctx, tx, record.GatheringID); err != nil {
				return err
			}

			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				created = pipe.SetNX(ctx, recordKey(record.GatheringID, record.ParticipantID), data, 0)
				pipe.SAdd(ctx, membersKey(record.GatheringID), record.ParticipantID)
				return nil
			})
			return err
		}, closedKey(record.GatheringID))

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrLedgerClosed) {
			return nil, ErrLedgerClosed
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create participant record: %w", err)
		}
		return &CreateRecordOutput{Created: created.Val()}, nil
	}

	return nil, ErrUpdateConflict
}

// GetRecord retrieves a record by identity
func (r *redisRepository) GetRecord(ctx context.Context, input *GetRecordInput) (*models.ParticipantRecord, error) {
	if input == nil || input.GatheringID == "" || input.ParticipantID == "" {
		return nil, errors.New("input, gathering ID and participant ID cannot be empty")
	}

	return getRecord(ctx, r.client, recordKey(input.GatheringID, input.ParticipantID))
}

func getRecord(ctx context.Context, c redis.Cmdable, key string) (*models.ParticipantRecord, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get participant record: %w", err)
	}

	var record models.ParticipantRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participant record: %w", err)
	}

	return &record, nil
}

// UpdateRecord applies Mutate under WATCH and commits with MULTI/EXEC
func (r *redisRepository) UpdateRecord(ctx context.Context, input *UpdateRecordInput) (*models.ParticipantRecord, error) {
	if input == nil || input.GatheringID == "" || input.ParticipantID == "" {
		return nil, errors.New("input, gathering ID and participant ID cannot be empty")
	}
	if input.Mutate == nil {
		return nil, errors.New("mutate cannot be nil")
	}

	key := recordKey(input.GatheringID, input.ParticipantID)
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var updated *models.ParticipantRecord
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			if input.RequireOpen {
				if err := checkOpen(ctx, tx, input.GatheringID); err != nil {
					return err
				}
			}

			record, err := getRecord(ctx, tx, key)
			if errors.Is(err, ErrRecordNotFound) && input.Default != nil {
				record = input.Default()
				record.GatheringID = input.GatheringID
				record.ParticipantID = input.ParticipantID
			} else if err != nil {
				return err
			}

			if err := input.Mutate(record); err != nil {
				return err
			}

			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to marshal participant record: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.SAdd(ctx, membersKey(input.GatheringID), input.ParticipantID)
				return nil
			})
			if err != nil {
				return err
			}

			updated = record
			return nil
		}, key, closedKey(input.GatheringID))

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	return nil, ErrUpdateConflict
}

// CloseLedger sets the closed marker of a gathering
func (r *redisRepository) CloseLedger(ctx context.Context, input *CloseLedgerInput) error {
	if input == nil || input.GatheringID == "" {
		return errors.New("input and gathering ID cannot be empty")
	}

	if err := r.client.Set(ctx, closedKey(input.GatheringID), 1, 0).Err(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	return nil
}

// ListRecords retrieves every record of a gathering ordered by participant
func (r *redisRepository) ListRecords(ctx context.Context, input *ListRecordsInput) (*ListRecordsOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, errors.New("input and gathering ID cannot be empty")
	}

	participantIDs, err := r.client.SMembers(ctx, membersKey(input.GatheringID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger members: %w", err)
	}

	if len(participantIDs) == 0 {
		return &ListRecordsOutput{
			Records: []*models.ParticipantRecord{},
		}, nil
	}
	sort.Strings(participantIDs)

	pipe := r.client.Pipeline()
	commands := make([]*redis.StringCmd, len(participantIDs))
	for i, participantID := range participantIDs {
		commands[i] = pipe.Get(ctx, recordKey(input.GatheringID, participantID))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get participant records: %w", err)
	}

	records := make([]*models.ParticipantRecord, 0, len(participantIDs))
	for i, cmd := range commands {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Record was deleted between reading the index and the record
				continue
			}
			return nil, fmt.Errorf("failed to get participant record %s: %w", participantIDs[i], err)
		}

		var record models.ParticipantRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participant record %s: %w", participantIDs[i], err)
		}
		records = append(records, &record)
	}

	return &ListRecordsOutput{
		Records: records,
	}, nil
}

// DeleteRecords removes every record of a gathering
func (r *redisRepository) DeleteRecords(ctx context.Context, input *DeleteRecordsInput) error {
	if input == nil || input.GatheringID == "" {
		return errors.New("input and gathering ID cannot be empty")
	}

	participantIDs, err := r.client.SMembers(ctx, membersKey(input.GatheringID)).Result()
	if err != nil {
		return fmt.Errorf("failed to get ledger members: %w", err)
	}

	keys := make([]string, 0, len(participantIDs)+2)
	for _, participantID := range participantIDs {
		keys = append(keys, recordKey(input.GatheringID, participantID))
	}
	keys = append(keys, membersKey(input.GatheringID), closedKey(input.GatheringID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete participant records: %w", err)
	}

	return nil
}
