package cart

import "context"

// Storage is the key/value area a visitor's cart lives in. It mirrors the
// browser local storage API: values are opaque strings.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// StorageFactory returns the Storage scoped to one visitor session.
type StorageFactory func(sessionID string) Storage
