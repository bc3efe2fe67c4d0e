package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/hibiken/asynq"
)

const (
	// TaskTypePresenceChange is the asynq task type carrying a presence event
	TaskTypePresenceChange = "presence:change"

	// QueuePresence is the asynq queue presence tasks are sent to
	QueuePresence = "presence"
)

// AsynqConfig configures a Redis-backed bus
type AsynqConfig struct {
	Redis       asynq.RedisClientOpt
	Concurrency int
}

// AsynqBus carries presence events through asynq so several processes can
// share intake and accounting. Delivery is at most once.
type AsynqBus struct {
	client *asynq.Client
	server *asynq.Server
}

// NewAsynqBus creates a bus backed by asynq
func NewAsynqBus(cfg *AsynqConfig) (*AsynqBus, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueuePresence: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.WarnContext(ctx, "presence task failed", "task_type", task.Type(), logging.ErrKey, err)
		}),
	})

	return &AsynqBus{
		client: asynq.NewClient(cfg.Redis),
		server: server,
	}, nil
}

// NewPresenceTask encodes an event as an asynq task
func NewPresenceTask(event *models.PresenceEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal presence event: %w", err)
	}
	return asynq.NewTask(TaskTypePresenceChange, payload), nil
}

// Publish enqueues the event
func (b *AsynqBus) Publish(ctx context.Context, event *models.PresenceEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	task, err := NewPresenceTask(event)
	if err != nil {
		return err
	}

	_, err = b.client.EnqueueContext(ctx, task,
		asynq.Queue(QueuePresence),
		asynq.MaxRetry(0),
		asynq.Retention(0),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue presence event: %w", err)
	}
	return nil
}

// Run consumes presence tasks until ctx is done
func (b *AsynqBus) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePresenceChange, TaskHandler(handler))

	if err := b.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start presence consumer: %w", err)
	}

	<-ctx.Done()
	b.server.Shutdown()
	return b.client.Close()
}

// TaskHandler decodes presence tasks and hands them to handler. Handler
// errors are logged rather than returned so asynq never retries an edge.
func TaskHandler(handler Handler) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var event models.PresenceEvent
		if err := json.Unmarshal(task.Payload(), &event); err != nil {
			return fmt.Errorf("malformed presence payload: %w: %w", err, asynq.SkipRetry)
		}
		deliver(ctx, handler, &event)
		return nil
	}
}
