package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/cespare/xxhash/v2"
)

// ErrBusClosed is returned when publishing after the bus stopped
var ErrBusClosed = errors.New("presence bus closed")

// Handler consumes normalized presence events
type Handler interface {
	HandlePresence(ctx context.Context, event *models.PresenceEvent) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, event *models.PresenceEvent) error

func (f HandlerFunc) HandlePresence(ctx context.Context, event *models.PresenceEvent) error {
	return f(ctx, event)
}

// Bus decouples presence intake from accounting
type Bus interface {
	// Publish hands an event to the bus
	Publish(ctx context.Context, event *models.PresenceEvent) error

	// Run delivers events to handler until ctx is done
	Run(ctx context.Context, handler Handler) error
}

// ChannelConfig configures an in-process bus
type ChannelConfig struct {
	// Shards is the number of workers; one participant always maps to the same shard
	Shards int

	// BufferSize is the queue depth of each shard
	BufferSize int
}

// ChannelBus delivers events in process. Events of one participant are
// handled by a single worker in publish order.
type ChannelBus struct {
	shards []chan *models.PresenceEvent
	done   chan struct{}
	once   sync.Once
}

// NewChannelBus creates an in-process bus
func NewChannelBus(cfg *ChannelConfig) (*ChannelBus, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Shards < 1 {
		return nil, errors.New("shards must be at least 1")
	}
	if cfg.BufferSize < 0 {
		return nil, errors.New("buffer size cannot be negative")
	}

	shards := make([]chan *models.PresenceEvent, cfg.Shards)
	for i := range shards {
		shards[i] = make(chan *models.PresenceEvent, cfg.BufferSize)
	}

	return &ChannelBus{
		shards: shards,
		done:   make(chan struct{}),
	}, nil
}

// Publish blocks until the event is queued, ctx is done or the bus stops
func (b *ChannelBus) Publish(ctx context.Context, event *models.PresenceEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	shard := b.shards[b.shardFor(event)]
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	select {
	case shard <- event:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts one worker per shard and blocks until ctx is done
func (b *ChannelBus) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	var wg sync.WaitGroup
	for i, shard := range b.shards {
		wg.Add(1)
		go func(id int, events <-chan *models.PresenceEvent) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-events:
					deliver(ctx, handler, event)
				}
			}
		}(i, shard)
	}

	<-ctx.Done()
	b.once.Do(func() { close(b.done) })
	wg.Wait()
	return nil
}

func (b *ChannelBus) shardFor(event *models.PresenceEvent) int {
	if len(b.shards) == 1 {
		return 0
	}
	h := xxhash.Sum64String(event.VenueID + ":" + event.ParticipantID)
	return int(h % uint64(len(b.shards)))
}

// deliver applies one event; failures are logged and the event is dropped,
// the next edge for the participant measures from its own anchor
func deliver(ctx context.Context, handler Handler, event *models.PresenceEvent) {
	ctx = logging.AppendCtx(ctx, slog.String("participant_id", event.ParticipantID))
	ctx = logging.AppendCtx(ctx, slog.String("venue_id", event.VenueID))
	if err := handler.HandlePresence(ctx, event); err != nil {
		slog.WarnContext(ctx, "dropping presence event", logging.ErrKey, err)
	}
}
