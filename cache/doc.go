// Package cache coalesces remote reads and builds their keys.
//
// The durable store is the long-lived cache of the engine. This package sits between the
// read engine and the remote client so that concurrent readers of a cold partition share one
// request instead of each issuing their own:
//
//	keys := cache.NewDefaultKeySerializer()
//	key := keys.SerializeKey("reviews/", url.Values{"restaurant_id": {"3"}})
//	reviews, err := cache.GetOrFetch(ctx, service, key, func(ctx context.Context) ([]model.Review, error) {
//		return fetchReviews(ctx, 3)
//	})
//
// Responses are kept for a short TTL only. Keys are prefixed by the resource path so a
// refresh can drop every cached response of a resource with DeleteByPrefix.
//
// # Key serialization
//
// The default serializer writes strings and numbers as-is, url.Values in encoded (sorted)
// form, maps with sorted pairs and slices element by element. Other values fall back to JSON.
// Function values are serialized by pointer and are only stable within one process.
package cache
