package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KirkDiggler/gatherer/internal/cache"
	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/common/ids"
	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/config"
	"github.com/KirkDiggler/gatherer/internal/handlers/discord"
	"github.com/KirkDiggler/gatherer/internal/handlers/rest"
	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/KirkDiggler/gatherer/internal/presence"
	gatheringRepo "github.com/KirkDiggler/gatherer/internal/repositories/gathering"
	jobRepo "github.com/KirkDiggler/gatherer/internal/repositories/job"
	ledgerRepo "github.com/KirkDiggler/gatherer/internal/repositories/ledger"
	pollRepo "github.com/KirkDiggler/gatherer/internal/repositories/poll"
	gatheringService "github.com/KirkDiggler/gatherer/internal/services/gathering"
	ledgerService "github.com/KirkDiggler/gatherer/internal/services/ledger"
	pollService "github.com/KirkDiggler/gatherer/internal/services/poll"
	"github.com/KirkDiggler/gatherer/internal/services/scheduler"
	"github.com/KirkDiggler/gatherer/internal/venue"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bot exited", logging.ErrKey, err)
		os.Exit(1)
	}
	slog.Info("bot has been shut down")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logging.Setup(&logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	gatherings, err := gatheringRepo.NewRedis(&gatheringRepo.Config{RedisClient: redisClient})
	if err != nil {
		return fmt.Errorf("failed to create gathering repository: %w", err)
	}
	records, err := ledgerRepo.NewRedis(&ledgerRepo.Config{RedisClient: redisClient})
	if err != nil {
		return fmt.Errorf("failed to create ledger repository: %w", err)
	}
	jobs, err := jobRepo.NewRedis(&jobRepo.Config{RedisClient: redisClient})
	if err != nil {
		return fmt.Errorf("failed to create job repository: %w", err)
	}
	polls, err := pollRepo.NewRedis(&pollRepo.Config{RedisClient: redisClient})
	if err != nil {
		return fmt.Errorf("failed to create poll repository: %w", err)
	}
	memberCache, err := cache.NewRedis(&cache.Config{RedisClient: redisClient})
	if err != nil {
		return fmt.Errorf("failed to create member cache: %w", err)
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}

	venueClient, err := venue.NewDiscord(&venue.DiscordConfig{
		Session: session,
		Cache:   memberCache,
		RoleTTL: cfg.Cache.MemberTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create venue client: %w", err)
	}

	clk := clock.New()
	idGen := ids.New()

	sched, err := scheduler.New(&scheduler.Config{
		JobRepo:        jobs,
		Clock:          clk,
		IDGenerator:    idGen,
		PollInterval:   cfg.Scheduler.PollInterval,
		LeaseDuration:  cfg.Scheduler.LeaseDuration,
		BatchSize:      cfg.Scheduler.BatchSize,
		HandlerTimeout: cfg.Scheduler.HandlerTimeout,
		BaseBackoff:    cfg.Scheduler.BaseBackoff,
		MaxBackoff:     cfg.Scheduler.MaxBackoff,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	ledgerSvc, err := ledgerService.New(&ledgerService.Config{LedgerRepo: records})
	if err != nil {
		return fmt.Errorf("failed to create ledger service: %w", err)
	}

	gatheringSvc, err := gatheringService.New(&gatheringService.Config{
		GatheringRepo: gatherings,
		Ledger:        ledgerSvc,
		Scheduler:     sched,
		Venue:         venueClient,
		Clock:         clk,
		IDGenerator:   idGen,
	})
	if err != nil {
		return fmt.Errorf("failed to create gathering service: %w", err)
	}

	pollSvc, err := pollService.New(&pollService.Config{
		PollRepo:    polls,
		Scheduler:   sched,
		Venue:       venueClient,
		Clock:       clk,
		IDGenerator: idGen,
		CloseDelay:  cfg.Poll.CloseDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create poll service: %w", err)
	}

	registrations := []*scheduler.RegisterInput{
		{Kind: models.JobKindOpenGathering, Handler: gatheringSvc, MaxAttempts: cfg.Scheduler.MaxAttempts},
		{Kind: models.JobKindCloseGathering, Handler: gatheringSvc},
		{Kind: models.JobKindClosePoll, Handler: pollSvc, MaxAttempts: cfg.Scheduler.MaxAttempts},
	}
	for _, reg := range registrations {
		if err := sched.Register(reg); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", reg.Kind, err)
		}
	}

	bus, err := newBus(cfg)
	if err != nil {
		return err
	}

	bot, err := discord.New(&discord.Config{
		Session:          session,
		ApplicationID:    cfg.Discord.ApplicationID,
		GuildID:          cfg.Discord.GuildID,
		GatheringService: gatheringSvc,
		PollService:      pollSvc,
		Bus:              bus,
		Venue:            venueClient,
		Clock:            clk,
	})
	if err != nil {
		return fmt.Errorf("failed to create Discord bot: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx, gatheringSvc)
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if cfg.HTTP.Enabled {
		server, err := rest.NewServer(&rest.Config{Addr: cfg.HTTP.Addr, GatheringService: gatheringSvc})
		if err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	if err := bot.Start(); err != nil {
		stop()
		return errors.Join(fmt.Errorf("failed to start Discord bot: %w", err), g.Wait())
	}

	<-gctx.Done()
	slog.Info("shutting down")

	if err := bot.Stop(); err != nil {
		slog.Warn("error stopping bot", logging.ErrKey, err)
	}

	return g.Wait()
}

// newBus picks the presence transport
func newBus(cfg *config.Config) (presence.Bus, error) {
	if cfg.Presence.Transport == "asynq" {
		bus, err := presence.NewAsynqBus(&presence.AsynqConfig{
			Redis: asynq.RedisClientOpt{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			Concurrency: cfg.Presence.Workers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create asynq presence bus: %w", err)
		}
		return bus, nil
	}

	bus, err := presence.NewChannelBus(&presence.ChannelConfig{
		Shards:     cfg.Presence.Workers,
		BufferSize: cfg.Presence.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create presence bus: %w", err)
	}
	return bus, nil
}
