// Package store persists direct messages and push subscriptions with gorm.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup matches no row visible to the caller.
var ErrNotFound = errors.New("store: record not found")

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
