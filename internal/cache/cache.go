// Package cache provides the TTL key-value store used for identity caching
// and bounded caption history.
package cache

import (
	"context"
	"time"
)

// Store is a key-value store with per-key TTL. List keys hold append-only
// JSON entries and expire as a whole, which bounds caption history per call.
type Store interface {
	// GetJSON unmarshals the value at key into dst. hit is false on a miss.
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)

	// SetJSON stores val as JSON under key with the given TTL.
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// AppendList appends val as JSON to the list at key and refreshes the
	// list's TTL.
	AppendList(ctx context.Context, key string, val any, ttl time.Duration) error

	// GetList returns every raw JSON entry of the list at key, oldest first.
	// A missing or expired key yields an empty slice.
	GetList(ctx context.Context, key string) ([][]byte, error)
}
