package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

const (
	MatchIDLength = 8
	matchAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	matchIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)
	uuidPattern    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)
)

// GenerateMatchID - generates a public 8 character base62 match id.
func GenerateMatchID() (string, error) {
	return GenerateMatchIDFrom(rand.Reader)
}

// GenerateMatchIDFrom - generates a public match id drawing randomness from source.
func GenerateMatchIDFrom(source io.Reader) (string, error) {
	alphabetSize := big.NewInt(int64(len(matchAlphabet)))
	id := make([]byte, MatchIDLength)

	for i := range id {
		n, err := rand.Int(source, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read randomness: %w", err)
		}

		id[i] = matchAlphabet[n.Int64()]
	}

	return string(id), nil
}

// IsValidMatchID - reports whether id has the shape of a public match id.
func IsValidMatchID(id string) bool {
	return matchIDPattern.MatchString(id)
}

// IsLikelyUUID - reports whether id looks like an internal match id.
func IsLikelyUUID(id string) bool {
	return uuidPattern.MatchString(id)
}

// NewInternalID - generates a random UUID for internal records.
func NewInternalID() string {
	return uuid.NewString()
}

// GenerateNewSessionID - generates a new unique sessionID.
func GenerateNewSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-session-id"
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
