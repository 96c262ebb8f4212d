package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Vault    VaultConfig    `yaml:"vault"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Session  SessionConfig  `yaml:"session"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
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

// RabbitMQConfig holds the dispatch channel configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
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

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RedisConfig holds the job-status push cache configuration
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	StatusTTL time.Duration `yaml:"status_ttl"`
}

// VaultConfig holds the credential vault configuration. MasterKey is
// 32 bytes hex encoded; it is normally supplied via the
// VAULT_MASTER_KEY environment variable rather than the YAML file.
type VaultConfig struct {
	MasterKey     string `yaml:"master_key"`
	KDFIterations int    `yaml:"kdf_iterations"`
	PasswordCost  int    `yaml:"password_cost"`
}

// MasterKeyBytes decodes and validates the master key. An absent or
// wrong-length key is a fatal startup error, not a per-request error.
func (v *VaultConfig) MasterKeyBytes() ([]byte, error) {
	if v.MasterKey == "" {
		return nil, fmt.Errorf("vault master key is required (set VAULT_MASTER_KEY)")
	}
	key, err := hex.DecodeString(v.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("vault master key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("vault master key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// DispatchConfig holds queue backpressure and freshness settings
type DispatchConfig struct {
	MaxQueueDepth       int           `yaml:"max_queue_depth"`
	StatsWindow         time.Duration `yaml:"stats_window"`
	RequireFreshSession bool          `yaml:"require_fresh_session"`
}

// SessionConfig holds the marketplace session checker settings. The
// checker is an external collaborator reached over HTTP.
type SessionConfig struct {
	CheckerURL string        `yaml:"checker_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// WebhookConfig holds the worker callback channel settings. Token is
// normally supplied via the WORKER_WEBHOOK_TOKEN environment variable.
type WebhookConfig struct {
	Token string `yaml:"token"`
}

// SweeperConfig holds the stuck-job sweep settings
type SweeperConfig struct {
	Schedule          string        `yaml:"schedule"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// Load reads and parses the configuration file. Secrets absent from
// the file are filled in from the environment.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Vault.MasterKey == "" {
		config.Vault.MasterKey = os.Getenv("VAULT_MASTER_KEY")
	}
	if config.Webhook.Token == "" {
		config.Webhook.Token = os.Getenv("WORKER_WEBHOOK_TOKEN")
	}
	if config.Database.Password == "" {
		config.Database.Password = os.Getenv("DB_PASSWORD")
	}

	return &config, nil
}

// ValidateAPIConfig checks the configuration needed by the API service.
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
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

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.Dispatch.MaxQueueDepth <= 0 {
		return fmt.Errorf("dispatch max_queue_depth must be greater than 0")
	}

	if c.Webhook.Token == "" {
		return fmt.Errorf("webhook token is required (set WORKER_WEBHOOK_TOKEN)")
	}

	if _, err := c.Vault.MasterKeyBytes(); err != nil {
		return err
	}

	if c.Vault.KDFIterations <= 0 {
		return fmt.Errorf("vault kdf_iterations must be greater than 0")
	}

	return nil
}

// ValidateSweeperConfig checks the configuration needed by the sweeper.
func (c *Config) ValidateSweeperConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Sweeper.Schedule == "" {
		return fmt.Errorf("sweeper schedule is required")
	}

	if c.Sweeper.ProcessingTimeout <= 0 {
		return fmt.Errorf("sweeper processing_timeout must be greater than 0")
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}
