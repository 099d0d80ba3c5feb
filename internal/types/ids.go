package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommitID identifies one journaled commit.
type CommitID string

// NewCommitID generates a UUIDv7 commit identifier.
// Time-ordered IDs keep the commit journal clustered by insertion time.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewCommitID() CommitID {
	return CommitID(uuid.Must(uuid.NewV7()).String())
}

// ParseCommitID validates and converts a string to CommitID.
func ParseCommitID(s string) (CommitID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return CommitID(s), nil
}

// CommitIDTime extracts the timestamp embedded in a UUIDv7 commit ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func CommitIDTime(id CommitID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}

// NewSecretID returns a UUIDv7 rendered as 32 hex chars, the secret_id
// component of API keys and FW_HMAC_SECRET values.
func NewSecretID() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}
