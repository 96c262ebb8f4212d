package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "resell_db", cfg.Database.Database)
				assert.Equal(t, "listings_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "listings_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, 200, cfg.Dispatch.MaxQueueDepth)
				assert.Equal(t, 100000, cfg.Vault.KDFIterations)
				assert.Equal(t, "*/5 * * * *", cfg.Sweeper.Schedule)
				assert.Equal(t, 30*time.Minute, cfg.Sweeper.ProcessingTimeout)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "resell_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "listings_exchange"},
			Queue:    QueueConfig{Name: "listings_queue"},
		},
		Vault: VaultConfig{
			MasterKey:     strings.Repeat("ab", 32),
			KDFIterations: 100000,
			PasswordCost:  12,
		},
		Dispatch: DispatchConfig{MaxQueueDepth: 100, StatsWindow: 24 * time.Hour},
		Webhook:  WebhookConfig{Token: "secret"},
		Sweeper:  SweeperConfig{Schedule: "*/5 * * * *", ProcessingTimeout: 30 * time.Minute},
	}
}

func TestValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty rabbitmq exchange",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "exchange name is required",
		},
		{
			name:      "zero queue depth ceiling",
			mutate:    func(c *Config) { c.Dispatch.MaxQueueDepth = 0 },
			wantErr:   true,
			errString: "max_queue_depth",
		},
		{
			name:      "missing webhook token",
			mutate:    func(c *Config) { c.Webhook.Token = "" },
			wantErr:   true,
			errString: "webhook token is required",
		},
		{
			name:      "missing master key",
			mutate:    func(c *Config) { c.Vault.MasterKey = "" },
			wantErr:   true,
			errString: "master key is required",
		},
		{
			name:      "short master key",
			mutate:    func(c *Config) { c.Vault.MasterKey = "abcd" },
			wantErr:   true,
			errString: "must be 32 bytes",
		},
		{
			name:      "non-hex master key",
			mutate:    func(c *Config) { c.Vault.MasterKey = strings.Repeat("zz", 32) },
			wantErr:   true,
			errString: "not valid hex",
		},
		{
			name:      "zero kdf iterations",
			mutate:    func(c *Config) { c.Vault.KDFIterations = 0 },
			wantErr:   true,
			errString: "kdf_iterations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateSweeperConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.ValidateSweeperConfig())

	cfg.Sweeper.Schedule = ""
	err := cfg.ValidateSweeperConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule is required")

	cfg = validConfig()
	cfg.Sweeper.ProcessingTimeout = 0
	err = cfg.ValidateSweeperConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing_timeout")
}

func TestMasterKeyBytes(t *testing.T) {
	v := VaultConfig{MasterKey: strings.Repeat("0f", 32)}
	key, err := v.MasterKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}
