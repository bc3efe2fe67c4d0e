package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration
type Config struct {
	Discord   DiscordConfig
	Redis     RedisConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Presence  PresenceConfig
	Cache     CacheConfig
	Poll      PollConfig
}

// DiscordConfig holds bot credentials
type DiscordConfig struct {
	Token         string
	ApplicationID string

	// GuildID registers commands for a single guild during development
	GuildID string
}

// RedisConfig points at the document store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// HTTPConfig controls the REST boundary
type HTTPConfig struct {
	Enabled bool
	Addr    string
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the lifecycle job driver
type SchedulerConfig struct {
	PollInterval   time.Duration
	LeaseDuration  time.Duration
	BatchSize      int
	HandlerTimeout time.Duration
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration

	// MaxAttempts bounds retries for open and poll jobs; close jobs retry until they succeed
	MaxAttempts int
}

// PresenceConfig selects how presence events travel from intake to the ledger
type PresenceConfig struct {
	// Transport is "channel" for in-process delivery or "asynq" for Redis-backed delivery
	Transport string

	// Workers is the shard count for channel and the consumer concurrency for
	// asynq; asynq keeps one participant's events in order only with 1
	Workers    int
	BufferSize int
}

// CacheConfig controls the venue member cache
type CacheConfig struct {
	MemberTTL time.Duration
}

// PollConfig holds poll defaults
type PollConfig struct {
	CloseDelay time.Duration
}

// Load reads configuration from the environment, loading .env first when present
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		Discord: DiscordConfig{
			Token:         getEnv("DISCORD_TOKEN", ""),
			ApplicationID: getEnv("APPLICATION_ID", ""),
			GuildID:       getEnv("GUILD_ID", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		HTTP: HTTPConfig{
			Enabled: getBool("HTTP_ENABLED", true),
			Addr:    getEnv("HTTP_ADDR", ":8080"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Scheduler: SchedulerConfig{
			PollInterval:   getDuration("SCHEDULER_POLL_INTERVAL", 5*time.Second),
			LeaseDuration:  getDuration("SCHEDULER_LEASE", 2*time.Minute),
			BatchSize:      getInt("SCHEDULER_BATCH_SIZE", 50),
			HandlerTimeout: getDuration("SCHEDULER_HANDLER_TIMEOUT", time.Minute),
			BaseBackoff:    getDuration("SCHEDULER_BASE_BACKOFF", 10*time.Second),
			MaxBackoff:     getDuration("SCHEDULER_MAX_BACKOFF", 10*time.Minute),
			MaxAttempts:    getInt("SCHEDULER_MAX_ATTEMPTS", 10),
		},
		Presence: PresenceConfig{
			Transport:  getEnv("PRESENCE_TRANSPORT", "channel"),
			Workers:    getInt("PRESENCE_WORKERS", 8),
			BufferSize: getInt("PRESENCE_BUFFER_SIZE", 256),
		},
		Cache: CacheConfig{
			MemberTTL: getDuration("MEMBER_CACHE_TTL", 5*time.Minute),
		},
		Poll: PollConfig{
			CloseDelay: getDuration("POLL_CLOSE_DELAY", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return errors.New("DISCORD_TOKEN environment variable is required")
	}
	switch c.Presence.Transport {
	case "channel", "asynq":
	default:
		return errors.New("PRESENCE_TRANSPORT must be channel or asynq")
	}
	if c.Presence.Workers < 1 {
		return errors.New("PRESENCE_WORKERS must be at least 1")
	}
	if c.Scheduler.PollInterval <= 0 {
		return errors.New("SCHEDULER_POLL_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration accepts Go durations or a bare number of seconds
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
