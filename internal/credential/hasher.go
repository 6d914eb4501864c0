// Package credential derives and verifies stored password digests.
//
// A modern digest is base64(salt ++ PBKDF2-HMAC-SHA256(password, salt)),
// 48 raw bytes. Any other stored value is treated as a legacy
// plaintext-equivalent credential that must be migrated on next login.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize   = 16
	HashSize   = 32
	DigestSize = SaltSize + HashSize

	// DefaultIterations is the OWASP floor for PBKDF2-HMAC-SHA256.
	DefaultIterations = 100_000
	MinIterations     = DefaultIterations
)

var ErrInvalidInput = errors.New("password must not be empty")

// Hasher is immutable after construction and safe for concurrent use.
// The iteration count is not encoded in the digest, so every digest must be
// verified with the count it was created with.
type Hasher struct {
	iterations int
	random     io.Reader
}

func NewHasher(iterations int) *Hasher {
	if iterations < MinIterations {
		iterations = DefaultIterations
	}

	return &Hasher{iterations: iterations, random: rand.Reader}
}

func (h *Hasher) Iterations() int {
	return h.iterations
}

// Hash returns a fresh salted digest. It is the only operation in this
// package that reports errors.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidInput
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := make([]byte, 0, DigestSize)
	digest = append(digest, salt...)
	digest = append(digest, h.derive(password, salt)...)

	return base64.StdEncoding.EncodeToString(digest), nil
}

// Verify never fails loudly: malformed digests and wrong passwords both
// yield false.
func (h *Hasher) Verify(storedDigest string, providedPassword string) bool {
	if storedDigest == "" || providedPassword == "" {
		return false
	}

	raw, ok := decodeDigest(storedDigest)
	if !ok {
		return false
	}

	salt := raw[:SaltSize]
	expected := raw[SaltSize:]

	return subtle.ConstantTimeCompare(expected, h.derive(providedPassword, salt)) == 1
}

func (h *Hasher) IsLegacyFormat(stored string) bool {
	return DetectFormat(stored) == FormatLegacy
}

func (h *Hasher) derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.iterations, HashSize, sha256.New)
}

// decodeDigest reports whether stored is a base64 encoding of exactly
// DigestSize bytes.
func decodeDigest(stored string) ([]byte, bool) {
	if stored == "" {
		return nil, false
	}

	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) != DigestSize {
		return nil, false
	}

	return raw, true
}
