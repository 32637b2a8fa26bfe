package dao

import (
	"context"
)

// Service abstracts persistence of keyed entities so that the in-memory
// registry store can later be swapped for a durable one without touching
// callers.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context) ([]*T, error)
}
