package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/typerace/go/internal/protocol"
)

// Config is the server file config. Every field is optional; environment
// variables override what the file sets.
type Config struct {
	Server struct {
		Port              string        `yaml:"port"`
		AllowedOrigins    []string      `yaml:"allowed_origins"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Gateway struct {
		RequestTimeout time.Duration `yaml:"request_timeout"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxMessageSize int64         `yaml:"max_message_size"`
	} `yaml:"gateway"`

	Rooms struct {
		IdleTTL       time.Duration `yaml:"idle_ttl"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"rooms"`

	StatsBus struct {
		// Driver is "memory" or "jetstream".
		Driver        string `yaml:"driver"`
		NatsURL       string `yaml:"nats_url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"stats_bus"`

	Activity struct {
		// Driver is "noop" or "kafka".
		Driver  string   `yaml:"driver"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"activity"`

	Leaderboard struct {
		// Store is "postgres" or "memory". Empty picks postgres when DB_HOST is set.
		Store string `yaml:"store"`
	} `yaml:"leaderboard"`

	Passages struct {
		// Source is "builtin" or "postgres". Empty picks postgres when DB_HOST is set.
		Source string `yaml:"source"`
	} `yaml:"passages"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadConfig reads the YAML file at path. A missing file yields an empty
// config.
func loadConfig(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// applyEnv lets environment variables override file values and fills in
// defaults.
func (c *Config) applyEnv(dbConfigured bool) error {
	c.Server.Port = getEnv("PORT", firstNonEmpty(c.Server.Port, "8080"))
	c.Server.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", orDefault(c.Server.AllowedOrigins, []string{"*"}))
	c.Server.ReadHeaderTimeout = getEnvAsDuration("READ_HEADER_TIMEOUT", durationOr(c.Server.ReadHeaderTimeout, 10*time.Second))
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", durationOr(c.Server.ShutdownTimeout, 15*time.Second))

	c.Gateway.RequestTimeout = getEnvAsDuration("GATEWAY_REQUEST_TIMEOUT", c.Gateway.RequestTimeout)
	c.Gateway.PingInterval = getEnvAsDuration("GATEWAY_PING_INTERVAL", c.Gateway.PingInterval)
	if v := getEnvAsInt("GATEWAY_MAX_MESSAGE_SIZE", 0); v > 0 {
		c.Gateway.MaxMessageSize = int64(v)
	}

	c.Rooms.IdleTTL = getEnvAsDuration("ROOM_IDLE_TTL", c.Rooms.IdleTTL)
	c.Rooms.SweepInterval = getEnvAsDuration("ROOM_SWEEP_INTERVAL", c.Rooms.SweepInterval)

	c.StatsBus.Driver = strings.ToLower(getEnv("STATS_BUS", firstNonEmpty(c.StatsBus.Driver, "memory")))
	c.StatsBus.NatsURL = getEnv("NATS_URL", c.StatsBus.NatsURL)

	c.Activity.Driver = strings.ToLower(getEnv("ACTIVITY_LOG", firstNonEmpty(c.Activity.Driver, "noop")))
	c.Activity.Brokers = getEnvAsList("KAFKA_BROKERS", c.Activity.Brokers)
	c.Activity.Topic = getEnv("KAFKA_ACTIVITY_TOPIC", c.Activity.Topic)

	defaultStore := "memory"
	if dbConfigured {
		defaultStore = "postgres"
	}
	c.Leaderboard.Store = strings.ToLower(getEnv("LEADERBOARD_STORE", firstNonEmpty(c.Leaderboard.Store, defaultStore)))
	defaultSource := "builtin"
	if dbConfigured {
		defaultSource = "postgres"
	}
	c.Passages.Source = strings.ToLower(getEnv("PASSAGE_SOURCE", firstNonEmpty(c.Passages.Source, defaultSource)))

	return c.validate(dbConfigured)
}

func (c *Config) validate(dbConfigured bool) error {
	switch c.StatsBus.Driver {
	case "memory", "jetstream":
	default:
		return fmt.Errorf("unknown stats bus driver %q", c.StatsBus.Driver)
	}
	switch c.Activity.Driver {
	case "noop", "kafka":
	default:
		return fmt.Errorf("unknown activity log driver %q", c.Activity.Driver)
	}
	switch c.Leaderboard.Store {
	case "memory":
	case "postgres":
		if !dbConfigured {
			return errors.New("leaderboard store postgres needs DB_HOST")
		}
	default:
		return fmt.Errorf("unknown leaderboard store %q", c.Leaderboard.Store)
	}
	if c.Gateway.MaxMessageSize > 0 && c.Gateway.MaxMessageSize < protocol.MaxEnvelopeSize {
		return fmt.Errorf("gateway max_message_size %d is below the largest valid message (%d bytes)", c.Gateway.MaxMessageSize, protocol.MaxEnvelopeSize)
	}
	switch c.Passages.Source {
	case "builtin":
	case "postgres":
		if !dbConfigured {
			return errors.New("passage source postgres needs DB_HOST")
		}
	default:
		return fmt.Errorf("unknown passage source %q", c.Passages.Source)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
