package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/solatis/firewrite/internal/core/db"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, string) {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.MigrateUp(ctx, database); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}

	secretID := types.NewSecretID()
	secrets := map[string][]byte{secretID: []byte("0123456789abcdef0123456789abcdef")}
	return NewAuthenticator(secrets, queries), secretID
}

func TestParseAPIKey(t *testing.T) {
	secretID := strings.Repeat("a", 32)
	random := strings.Repeat("0", 64)

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", FormatAPIKey(secretID, random), false},
		{"wrong prefix", "tk-v1-" + secretID + "-" + random, true},
		{"wrong version", "fw-v2-" + secretID + "-" + random, true},
		{"short secret", "fw-v1-abc-" + random, true},
		{"short random", "fw-v1-" + secretID + "-abc", true},
		{"uppercase hex", "fw-v1-" + strings.ToUpper(secretID) + "-" + random, true},
		{"extra segment", FormatAPIKey(secretID, random) + "-x", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSecret, gotRandom, err := ParseAPIKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKeyFormat) {
					t.Errorf("expected ErrInvalidKeyFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotSecret != secretID || gotRandom != random {
				t.Errorf("got (%q, %q)", gotSecret, gotRandom)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	secretID := types.NewSecretID()
	secret := []byte("secret")

	key, hash, err := GenerateAPIKey(secretID, secret)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}
	if len(key) != 103 {
		t.Errorf("key length = %d, want 103", len(key))
	}
	gotSecret, _, err := ParseAPIKey(key)
	if err != nil || gotSecret != secretID {
		t.Errorf("ParseAPIKey(%q) = %q, %v", key, gotSecret, err)
	}
	if !VerifyHMAC(hash, ComputeHMAC(secret, key)) {
		t.Error("hash does not verify")
	}

	other, _, _ := GenerateAPIKey(secretID, secret)
	if other == key {
		t.Error("two generated keys are equal")
	}
}

func TestIssueAndAuthenticate(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	ctx := context.Background()

	id, key, err := a.IssueKey("tenant-a", "ci")
	if err != nil {
		t.Fatalf("IssueKey failed: %v", err)
	}
	if id == "" {
		t.Error("expected api key id")
	}

	tenant, err := a.Authenticate(ctx, key)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if tenant != "tenant-a" {
		t.Errorf("tenant = %q, want tenant-a", tenant)
	}

	// Second call within a minute skips the last_used_at refresh but still succeeds.
	if _, err := a.Authenticate(ctx, key); err != nil {
		t.Errorf("second Authenticate failed: %v", err)
	}
}

func TestAuthenticate_Errors(t *testing.T) {
	a, secretID := newTestAuthenticator(t)
	ctx := context.Background()

	_, err := a.Authenticate(ctx, "garbage")
	if !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("garbage: got %v", err)
	}

	unknown := FormatAPIKey(strings.Repeat("b", 32), strings.Repeat("0", 64))
	if _, err := a.Authenticate(ctx, unknown); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown secret: got %v", err)
	}

	forged := FormatAPIKey(secretID, strings.Repeat("0", 64))
	if _, err := a.Authenticate(ctx, forged); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("forged key: got %v", err)
	}

	id, key, err := a.IssueKey("tenant-a", "")
	if err != nil {
		t.Fatalf("IssueKey failed: %v", err)
	}
	if err := a.RevokeKey(id); err != nil {
		t.Fatalf("RevokeKey failed: %v", err)
	}
	if err := a.RevokeKey(id); err != nil {
		t.Errorf("second RevokeKey failed: %v", err)
	}
	if _, err := a.Authenticate(ctx, key); !errors.Is(err, ErrKeyRevoked) {
		t.Errorf("revoked key: got %v", err)
	}
}

func TestIssueKey_Errors(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	if _, _, err := a.IssueKey("", "x"); err == nil {
		t.Error("expected error for empty tenant")
	}

	empty := NewAuthenticator(nil, a.queries)
	if _, _, err := empty.IssueKey("tenant-a", "x"); !errors.Is(err, ErrNoSecrets) {
		t.Errorf("expected ErrNoSecrets, got %v", err)
	}
}

func TestIssueKey_UsesNewestSecret(t *testing.T) {
	a, oldID := newTestAuthenticator(t)
	time.Sleep(2 * time.Millisecond)
	newID := types.NewSecretID()
	a.secrets[newID] = []byte("fedcba9876543210fedcba9876543210")

	_, key, err := a.IssueKey("tenant-a", "")
	if err != nil {
		t.Fatalf("IssueKey failed: %v", err)
	}
	got, _, _ := ParseAPIKey(key)
	if got != newID {
		t.Errorf("key signed with %s, want newest %s (old %s)", got, newID, oldID)
	}
}

func TestUnaryInterceptor(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	_, key, err := a.IssueKey("tenant-a", "")
	if err != nil {
		t.Fatalf("IssueKey failed: %v", err)
	}
	revokedID, revoked, _ := a.IssueKey("tenant-b", "")
	if err := a.RevokeKey(revokedID); err != nil {
		t.Fatalf("RevokeKey failed: %v", err)
	}

	interceptor := a.UnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/google.firestore.v1.Firestore/Commit"}

	var seenTenant string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seenTenant = TenantIDFromContext(ctx)
		return "ok", nil
	}

	tests := []struct {
		name     string
		ctx      context.Context
		wantCode codes.Code
	}{
		{"no metadata", context.Background(), codes.Unauthenticated},
		{"no key", metadata.NewIncomingContext(context.Background(), metadata.Pairs()), codes.Unauthenticated},
		{"bad key", metadata.NewIncomingContext(context.Background(), metadata.Pairs(APIKeyHeader, "nope")), codes.Unauthenticated},
		{"revoked", metadata.NewIncomingContext(context.Background(), metadata.Pairs(APIKeyHeader, revoked)), codes.PermissionDenied},
		{"valid", metadata.NewIncomingContext(context.Background(), metadata.Pairs(APIKeyHeader, key)), codes.OK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenTenant = ""
			_, err := interceptor(tt.ctx, nil, info, handler)
			if got := status.Code(err); got != tt.wantCode {
				t.Fatalf("code = %v, want %v (%v)", got, tt.wantCode, err)
			}
			if tt.wantCode == codes.OK && seenTenant != "tenant-a" {
				t.Errorf("handler saw tenant %q", seenTenant)
			}
		})
	}
}

func TestTenantIDFromContext(t *testing.T) {
	if got := TenantIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context: got %q", got)
	}
	ctx := ContextWithTenantID(context.Background(), "t1")
	if got := TenantIDFromContext(ctx); got != "t1" {
		t.Errorf("got %q, want t1", got)
	}
}

func TestUnaryInterceptor_HealthUnauthenticated(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	if _, err := a.UnaryInterceptor()(context.Background(), nil, info, handler); err != nil {
		t.Errorf("health check rejected: %v", err)
	}
}
