// Package auth verifies API keys and carries the caller identity through
// request contexts.
package auth

import (
	"context"
	"errors"
	"slices"
)

// Environment restricts which payment routes a key may call.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

// KeyType separates tenant app keys from account root keys.
type KeyType string

const (
	KeyTypeApp  KeyType = "app"
	KeyTypeRoot KeyType = "root"
)

var ErrInvalidKey = errors.New("invalid api key")

// Identity is what a verified key says about its caller.
type Identity struct {
	KeyID       string      `json:"keyId"`
	OwnerID     string      `json:"ownerId"`
	Environment Environment `json:"environment"`
	Type        KeyType     `json:"type"`
	AppID       string      `json:"appId,omitempty"`
}

func (id Identity) IsRoot() bool {
	return id.Type == KeyTypeRoot
}

// AllowsApp reports whether id is an app key for one of envs.
func (id Identity) AllowsApp(envs ...Environment) bool {
	if id.Type != KeyTypeApp {
		return false
	}

	return len(envs) == 0 || slices.Contains(envs, id.Environment)
}

// Verifier checks a key against the key set identified by apiID.
type Verifier interface {
	Verify(ctx context.Context, apiID, key string) (Identity, error)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
