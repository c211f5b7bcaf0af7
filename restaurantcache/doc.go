// Package restaurantcache is the offline-first engine of the restaurant review client.
//
// # Reads
//
// Every read goes to the durable store first. Only an empty result triggers a remote fetch;
// the normalized records are written back into the store before they are returned. A
// populated store is never revalidated, so RefreshRestaurants is the only way to pull newer
// remote data once the store is warm.
//
//	engine := restaurantcache.New(st, client, cacheService, cache.NewDefaultKeySerializer(),
//		restaurantcache.WithConnectivity(status),
//	)
//	thai, err := engine.FetchRestaurantsByCuisineAndNeighborhood(ctx, "Thai", restaurantcache.All)
//
// Concurrent readers hitting a cold store share a single remote request through the
// cache.CacheService passed to New.
//
// # Writes
//
// SetFavorite and SubmitReview record a pending mutation before any remote attempt and
// remove it once the remote service confirms the write. While offline, or when the remote
// call fails with a transport error or a server error, the mutation stays queued and the
// call still succeeds. The connectivity package drains the queue through Replay when the
// client comes back online.
//
// Queued entries are keyed by a content hash of their payload, so an identical write is
// never queued twice. A new favorite value for a restaurant replaces any older queued value
// for the same restaurant.
//
// # Review ids
//
// A review submitted without an id is stored under a provisional id (review count + 1,
// probing upward while the id is taken). When the remote service answers with a different
// id, the provisional record is deleted and the confirmed record is stored under the
// server id.
//
// # Delivery
//
// Replay is at-least-once. Each delivery carries an Idempotency-Key derived from the
// mutation hash, but nothing here depends on the remote service honoring it: a replay
// whose response is lost will be delivered again.
package restaurantcache
