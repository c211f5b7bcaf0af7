package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidResultType is returned when a cached value does not have the type the caller asked for.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// KeySerializer builds a cache key from an operation name and its arguments.
// Keys must be stable for equal arguments.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn loads a value from the source of truth when the cache has no entry for it.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService coalesces and caches loads of remote resources. Concurrent GetOrFetch calls
// for the same key share one in-flight fetch. DeleteByPrefix drops every entry under a
// resource path.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch is the type-safe form of CacheService.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T
	result, err := service.GetOrFetch(ctx, key, fetchFn)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrInvalidResultType, key, result)
	}
	return typed, nil
}
