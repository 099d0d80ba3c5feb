// Package config provides configuration management for firewrite.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/firewrite/internal/types"
)

// Config holds settings shared by the commit service and the CLI client.
type Config struct {
	// Commit service.
	Host               string
	Port               int
	MetricsPort        int // 0 disables the /metrics listener
	MaxConnections     int
	RequestTimeout     time.Duration
	MaxWritesPerCommit int
	DBURL              string

	// Resource naming for relative document paths.
	ProjectID  string
	DatabaseID string

	// Client.
	ClientAddress string
	ClientTimeout time.Duration
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               50051,
		MetricsPort:        9090,
		MaxConnections:     1000,
		RequestTimeout:     30 * time.Second,
		MaxWritesPerCommit: 500,
		DBURL:              "sqlite://firewrite.db",
		ProjectID:          "firewrite",
		DatabaseID:         types.DefaultDatabase,
		ClientAddress:      "localhost:50051",
		ClientTimeout:      10 * time.Second,
	}
}

// DatabaseName returns projects/{project}/databases/{database}.
func (c *Config) DatabaseName() string {
	return types.DatabaseName(c.ProjectID, c.DatabaseID)
}

// DocumentName resolves a relative document path against the configured
// project and database.
func (c *Config) DocumentName(docPath string) (string, error) {
	return types.DocumentName(c.ProjectID, c.DatabaseID, docPath)
}

// APIKey returns the client API key from FW_API_KEY. Environment only.
func APIKey() string {
	return strings.TrimSpace(os.Getenv("FW_API_KEY"))
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports FW_HMAC_SECRET (single) and FW_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("FW_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("FW_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Numbered secrets keep old and new keys valid during rotation.
	for i := 1; ; i++ {
		key := fmt.Sprintf("FW_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check FW_HMAC_SECRET and FW_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}
