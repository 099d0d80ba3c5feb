package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned struct.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("server.host", d.Host)
	v.SetDefault("server.port", d.Port)
	v.SetDefault("server.metrics_port", d.MetricsPort)
	v.SetDefault("server.max_connections", d.MaxConnections)
	v.SetDefault("server.request_timeout", d.RequestTimeout.String())
	v.SetDefault("server.max_writes_per_commit", d.MaxWritesPerCommit)
	v.SetDefault("db_url", d.DBURL)
	v.SetDefault("project_id", d.ProjectID)
	v.SetDefault("database_id", d.DatabaseID)
	v.SetDefault("client.address", d.ClientAddress)
	v.SetDefault("client.timeout", d.ClientTimeout.String())

	// FW_SERVER_PORT, FW_DB_URL, FW_CLIENT_ADDRESS, ...
	v.SetEnvPrefix("FW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:               v.GetString("server.host"),
		Port:               v.GetInt("server.port"),
		MetricsPort:        v.GetInt("server.metrics_port"),
		MaxConnections:     v.GetInt("server.max_connections"),
		RequestTimeout:     v.GetDuration("server.request_timeout"),
		MaxWritesPerCommit: v.GetInt("server.max_writes_per_commit"),
		DBURL:              v.GetString("db_url"),
		ProjectID:          v.GetString("project_id"),
		DatabaseID:         v.GetString("database_id"),
		ClientAddress:      v.GetString("client.address"),
		ClientTimeout:      v.GetDuration("client.timeout"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks port ranges, positive limits and resource naming.
func Validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 0 and 65535, got %d", cfg.MetricsPort)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxWritesPerCommit <= 0 {
		return fmt.Errorf("max_writes_per_commit must be positive, got %d", cfg.MaxWritesPerCommit)
	}
	if cfg.ClientTimeout <= 0 {
		return fmt.Errorf("client.timeout must be positive, got %v", cfg.ClientTimeout)
	}
	if cfg.ProjectID == "" || strings.Contains(cfg.ProjectID, "/") {
		return fmt.Errorf("project_id must be a non-empty name without '/', got %q", cfg.ProjectID)
	}
	if cfg.DatabaseID == "" || strings.Contains(cfg.DatabaseID, "/") {
		return fmt.Errorf("database_id must be a non-empty name without '/', got %q", cfg.DatabaseID)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use FW_HMAC_SECRET environment variable)")
	}
	if v.InConfig("api_key") || v.InConfig("client.api_key") {
		return fmt.Errorf("API keys not allowed in config files (use FW_API_KEY environment variable)")
	}
	return nil
}
