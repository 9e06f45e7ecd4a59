// Package device manages the pairing identity that scopes which gateway
// rows belong to this display.
package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/five82/galley/internal/storage"
)

// Identity is the persisted pairing of this display. Only Token is sent to
// the gateway; DeviceID is kept for display.
type Identity struct {
	DeviceID string
	Token    string
}

// Generator produces new random identifiers. Tests replace it.
type Generator func() string

func newUUID() string { return uuid.NewString() }

// Ensure loads the identity, generating and persisting each value that is
// missing. Storage failures are returned; the display cannot sync without an
// identity.
func Ensure(ctx context.Context, st storage.Store) (Identity, error) {
	return ensure(ctx, st, newUUID)
}

func ensure(ctx context.Context, st storage.Store, gen Generator) (Identity, error) {
	id, err := loadOrCreate(ctx, st, storage.KeyDeviceID, gen)
	if err != nil {
		return Identity{}, err
	}
	token, err := loadOrCreate(ctx, st, storage.KeyDeviceToken, gen)
	if err != nil {
		return Identity{}, err
	}
	return Identity{DeviceID: id, Token: token}, nil
}

// Load returns the stored identity without generating anything. Missing
// values are empty.
func Load(ctx context.Context, st storage.Store) (Identity, error) {
	id, _, err := st.Get(ctx, storage.KeyDeviceID)
	if err != nil {
		return Identity{}, fmt.Errorf("read device id: %w", err)
	}
	token, _, err := st.Get(ctx, storage.KeyDeviceToken)
	if err != nil {
		return Identity{}, fmt.Errorf("read device token: %w", err)
	}
	return Identity{DeviceID: id, Token: token}, nil
}

// RegenerateToken replaces the stored token and returns the new value. Rows
// addressed to the old token stop matching; the operator must update the
// origin system with the new one.
func RegenerateToken(ctx context.Context, st storage.Store) (string, error) {
	return regenerate(ctx, st, newUUID)
}

func regenerate(ctx context.Context, st storage.Store, gen Generator) (string, error) {
	token := gen()
	if err := st.Set(ctx, storage.KeyDeviceToken, token); err != nil {
		return "", fmt.Errorf("store device token: %w", err)
	}
	return token, nil
}

func loadOrCreate(ctx context.Context, st storage.Store, key string, gen Generator) (string, error) {
	value, ok, err := st.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	if ok && strings.TrimSpace(value) != "" {
		return value, nil
	}
	value = gen()
	if err := st.Set(ctx, key, value); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return value, nil
}
