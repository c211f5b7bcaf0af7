// Package connectivity tracks the online/offline signal produced by the host runtime and
// replays queued mutations when connectivity returns.
//
// The Coordinator has two states, Online and Offline. Only the Offline to Online
// transition, or a one-off background sync trigger, drains the queue. Drains are
// sequential and serialized: a second trigger waits for the running drain to finish and
// then sees whatever is still pending.
//
// Delivery is at-least-once. An entry is removed only after the remote service confirms
// it, so a response lost on the way back causes the same mutation to be sent again on the
// next drain.
//
// Wiring with the write engine:
//
//	status := connectivity.NewStatus(true)
//	engine := restaurantcache.New(st, client, cacheService, serializer,
//		restaurantcache.WithConnectivity(status),
//	)
//	coord := connectivity.New(status, engine)
//
//	go coord.Watch(ctx, events)
package connectivity
