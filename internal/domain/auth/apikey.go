// Package auth authenticates administrative API keys.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeDiscountsWrite allows creating, updating and deleting discounts.
const ScopeDiscountsWrite = "discounts:write"

var (
	// ErrUnauthorized is returned for unknown, inactive or under-scoped keys.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrKeyNotFound is returned by repositories when no key has the hash.
	ErrKeyNotFound = errors.New("api key not found")
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their hex HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// Hash returns the hex HMAC-SHA256 of key under pepper.
func Hash(pepper []byte, key string) string {
	return hex.EncodeToString(sum(pepper, key))
}

func sum(pepper []byte, key string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// Authenticator verifies raw API keys against a Repository.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Authenticate resolves key and checks that it carries scope.
func (a *Authenticator) Authenticate(ctx context.Context, key, scope string) (*APIKeyInfo, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}

	digest := sum(a.pepper, key)

	info, err := a.keys.FindByHash(ctx, hex.EncodeToString(digest))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "find api key")
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(digest, stored) != 1 {
		return nil, ErrUnauthorized
	}
	if !slices.Contains(info.Scopes, scope) {
		return nil, ErrUnauthorized
	}
	return info, nil
}

// StaticKeys is a Repository over a fixed set of keys, used when keys come
// from configuration.
type StaticKeys struct {
	keys []APIKeyInfo
}

var _ Repository = (*StaticKeys)(nil)

// NewStaticKeys returns a Repository serving keys.
func NewStaticKeys(keys ...APIKeyInfo) *StaticKeys {
	return &StaticKeys{keys: keys}
}

func (s *StaticKeys) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	want, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrKeyNotFound
	}
	for i := range s.keys {
		got, err := hex.DecodeString(s.keys[i].KeyHash)
		if err != nil {
			continue
		}
		if subtle.ConstantTimeCompare(want, got) == 1 {
			info := s.keys[i]
			return &info, nil
		}
	}
	return nil, ErrKeyNotFound
}
