package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// OpaqueTokenBytes is the entropy of session, reset and magic-link tokens.
const OpaqueTokenBytes = 32

// NewOpaqueToken returns OpaqueTokenBytes of CSPRNG output, base64url
// encoded without padding.
func NewOpaqueToken() (string, error) {
	var raw [OpaqueTokenBytes]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the storage digest of an opaque token. Stores only ever
// see digests, so a leaked table or keyspace does not yield live tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidOpaqueToken reports whether token has the shape produced by
// NewOpaqueToken. It lets callers reject junk before a store round trip.
func ValidOpaqueToken(token string) bool {
	if strings.TrimSpace(token) != token || token == "" {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == OpaqueTokenBytes
}

// NewSecretBytes returns n random bytes.
func NewSecretBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("invalid secret size")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
