// Package auth provides HMAC-based API key authentication for gRPC services.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solatis/firewrite/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// APIKeyHeader is the metadata key carrying the caller's API key.
const APIKeyHeader = "x-api-key"

// healthService is served without authentication.
const healthService = "/grpc.health.v1.Health/"

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// tenantIDKey is the context key for storing authenticated tenant ID.
const tenantIDKey = contextKey("tenant_id")

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(name string, dest interface{}, args ...interface{}) error
	Exec(name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     time.Now,
	}
}

// Authenticate validates an API key and returns its tenant_id.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique, so at most one row matches.
	var result struct {
		TenantID   string       `db:"tenant_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		APIKeyID   string       `db:"api_key_id"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	err = a.queries.Get("get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// last_used_at is refreshed at most once a minute per key.
	if shouldUpdateLastUsed(result.LastUsedAt, a.now()) {
		_, _ = a.queries.Exec("update-last-used", a.now().UTC(), result.APIKeyID)
	}

	return result.TenantID, nil
}

// IssueKey creates and stores a new API key for tenantID, signed with the
// newest configured secret. The plaintext key is returned once.
func (a *Authenticator) IssueKey(tenantID, name string) (apiKeyID, apiKey string, err error) {
	if tenantID == "" {
		return "", "", errors.New("tenant ID required")
	}
	secretID, ok := a.newestSecretID()
	if !ok {
		return "", "", ErrNoSecrets
	}

	apiKey, hash, err := GenerateAPIKey(secretID, a.secrets[secretID])
	if err != nil {
		return "", "", err
	}

	apiKeyID = uuid.Must(uuid.NewV7()).String()
	if _, err := a.queries.Exec("insert-api-key", apiKeyID, tenantID, secretID, hash, name, a.now().UTC()); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return apiKeyID, apiKey, nil
}

// RevokeKey marks a key revoked. Revoking twice is a no-op.
func (a *Authenticator) RevokeKey(apiKeyID string) error {
	if _, err := a.queries.Exec("revoke-api-key", a.now().UTC(), apiKeyID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}

// newestSecretID picks the most recent secret. Secret IDs are UUIDv7, so
// lexical order is creation order.
func (a *Authenticator) newestSecretID() (string, bool) {
	if len(a.secrets) == 0 {
		return "", false
	}
	ids := make([]string, 0, len(a.secrets))
	for id := range a.secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[len(ids)-1], true
}

func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > time.Minute
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, healthService) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(APIKeyHeader)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		tenantID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			switch {
			case errors.Is(err, ErrKeyRevoked):
				return nil, status.Error(codes.PermissionDenied, err.Error())
			case errors.Is(err, ErrDatabase):
				return nil, status.Error(codes.Unavailable, err.Error())
			default:
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		ctx = context.WithValue(ctx, tenantIDKey, tenantID)
		ctx = logging.ContextWithTenant(ctx, tenantID)
		return handler(ctx, req)
	}
}

// TenantIDFromContext extracts tenant ID from context.
// Returns empty string if not found.
func TenantIDFromContext(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

// ContextWithTenantID attaches a tenant ID the way the interceptor does.
// Used by in-process callers that authenticate out of band.
func ContextWithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}
