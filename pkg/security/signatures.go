package security

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

// IntegrityInfo is the result of checking a stored document against its recorded hash.
type IntegrityInfo struct {
	Algorithm   string    `json:"algorithm"`
	Expected    string    `json:"expected"`
	Actual      string    `json:"actual"`
	IsValid     bool      `json:"is_valid"`
	VerifiedAt  time.Time `json:"verified_at"`
	SizeInBytes int64     `json:"size_in_bytes"`
}

// Validator hashes documents and checks them against a recorded hash.
type Validator interface {
	Hash(ctx context.Context, r io.Reader) (string, int64, error)
	Verify(ctx context.Context, r io.Reader, expected string) (*IntegrityInfo, error)
}

type sha256Validator struct {
	now func() time.Time
}

func NewValidator() Validator {
	return &sha256Validator{now: time.Now}
}

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (v *sha256Validator) Hash(ctx context.Context, r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash document: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func (v *sha256Validator) Verify(ctx context.Context, r io.Reader, expected string) (*IntegrityInfo, error) {
	actual, n, err := v.Hash(ctx, r)
	if err != nil {
		return nil, err
	}
	expected = strings.ToLower(strings.TrimSpace(expected))
	return &IntegrityInfo{
		Algorithm:   "SHA-256",
		Expected:    expected,
		Actual:      actual,
		IsValid:     expected != "" && subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1,
		VerifiedAt:  v.now(),
		SizeInBytes: n,
	}, nil
}
