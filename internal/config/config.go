package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Queue limit defaults, applied when the config file or environment leaves
// a limit unset or invalid.
const (
	DefaultMaxConcurrentJobs = 3
	DefaultMaxQueueSize      = 50
	DefaultMaxJobsPerUser    = 2
	DefaultPollInterval      = time.Second
	DefaultShutdownTimeout   = 30 * time.Second
)

// Environment variables that override the queue limits.
const (
	EnvMaxConcurrentJobs = "JOB_QUEUE_MAX_CONCURRENT"
	EnvMaxQueueSize      = "JOB_QUEUE_MAX_SIZE"
	EnvMaxJobsPerUser    = "JOB_QUEUE_MAX_PER_USER"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Queue      QueueConfig      `yaml:"queue"`
	Processing ProcessingConfig `yaml:"processing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	RequestBurst    int           `yaml:"request_burst"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration for
// the notification publisher
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// QueueConfig holds job coordinator configuration
type QueueConfig struct {
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	MaxQueueSize      int           `yaml:"max_queue_size"`
	MaxJobsPerUser    int           `yaml:"max_jobs_per_user"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// ProcessingConfig holds transcriber command configuration
type ProcessingConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads and parses the configuration file, then normalizes the queue
// limits. A non-positive or missing limit falls back to its default; a bad
// value never prevents startup.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Queue.normalize()

	return &config, nil
}

func (q *QueueConfig) normalize() {
	if q.MaxConcurrentJobs <= 0 {
		q.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if q.MaxQueueSize <= 0 {
		q.MaxQueueSize = DefaultMaxQueueSize
	}
	if q.MaxJobsPerUser <= 0 {
		q.MaxJobsPerUser = DefaultMaxJobsPerUser
	}
	if q.PollInterval <= 0 {
		q.PollInterval = DefaultPollInterval
	}
	if q.ShutdownTimeout <= 0 {
		q.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// ApplyQueueEnvOverrides overrides the queue limits from the environment.
// Invalid values are ignored with a logged warning, never a startup crash.
func (c *Config) ApplyQueueEnvOverrides(logger *slog.Logger) {
	c.Queue.MaxConcurrentJobs = positiveIntFromEnv(logger, EnvMaxConcurrentJobs, c.Queue.MaxConcurrentJobs)
	c.Queue.MaxQueueSize = positiveIntFromEnv(logger, EnvMaxQueueSize, c.Queue.MaxQueueSize)
	c.Queue.MaxJobsPerUser = positiveIntFromEnv(logger, EnvMaxJobsPerUser, c.Queue.MaxJobsPerUser)
}

func positiveIntFromEnv(logger *slog.Logger, name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		logger.Warn("Ignoring invalid queue limit from environment",
			slog.String("var", name),
			slog.String("value", raw),
			slog.Int("fallback", fallback),
		)
		return fallback
	}

	return value
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.Processing.Command == "" {
		return fmt.Errorf("processing command is required")
	}

	return nil
}
