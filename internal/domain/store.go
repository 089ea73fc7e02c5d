package domain

import "context"

// KeyValueStore is the durable string store behind the vote records.
// Get reports a missing key as ("", false, nil).
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
