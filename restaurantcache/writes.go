package restaurantcache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-restaurant-sync/connectivity"
	"github.com/goliatone/go-restaurant-sync/model"
	"github.com/goliatone/go-restaurant-sync/remote"
	"github.com/goliatone/go-restaurant-sync/store"
	"github.com/vmihailenco/msgpack/v5"
)

// SetFavorite records a favorite toggle. Offline, the value is mirrored into the store as
// unsynced and queued. Online, it is sent to the remote service; a transport failure or a
// server error falls back to the offline path and still returns nil. A client error
// discards the queued mutation and is returned.
func (e *Engine) SetFavorite(ctx context.Context, restaurantID int64, isFavorite bool) error {
	payload := model.FavoritePayload{RestaurantID: restaurantID, IsFavorite: isFavorite}

	m, err := e.enqueue(ctx, model.KindFavoriteUpdate, payload)
	if err != nil {
		return err
	}

	if !e.online() {
		e.logger.Debug("offline, favorite queued", "restaurant_id", restaurantID, "is_favorite", isFavorite)
		return e.mirrorQueuedFavorite(ctx, m, payload)
	}

	if _, err := e.claim(ctx, m); err != nil {
		if errors.Is(err, connectivity.ErrSkipped) {
			e.logger.Debug("favorite handled by another delivery", "restaurant_id", restaurantID, "reason", err)
			return nil
		}
		return err
	}
	defer e.release(m.Hash)

	err = e.deliverFavorite(ctx, m, payload)
	switch {
	case err == nil:
		return nil
	case remote.IsRetryable(err):
		e.logger.Warn("favorite update deferred", "restaurant_id", restaurantID, "error", err)
		return e.mirrorQueuedFavorite(ctx, m, payload)
	default:
		_, derr := e.whileQueued(ctx, m, func() error { return e.dequeue(ctx, m.Hash) })
		if derr != nil {
			return errors.Join(err, derr)
		}
		return err
	}
}

// deliverFavorite sends a favorite update. On success the value is mirrored as synced and
// the entry removed, unless a newer toggle replaced the entry while the request was out.
func (e *Engine) deliverFavorite(ctx context.Context, m model.PendingMutation, p model.FavoritePayload) error {
	ctx = remote.WithIdempotencyKey(ctx, IdempotencyKey(m.Hash))
	path := pathRestaurants + strconv.FormatInt(p.RestaurantID, 10) + "/"
	query := url.Values{"is_favorite": {strconv.FormatBool(p.IsFavorite)}}

	if err := e.remote.PutResource(ctx, path, query); err != nil {
		return err
	}

	settled, err := e.whileQueued(ctx, m, func() error {
		if err := e.mirrorFavorite(ctx, p.RestaurantID, p.IsFavorite, true); err != nil {
			return err
		}
		return e.dequeue(ctx, m.Hash)
	})
	if err != nil {
		return err
	}
	if !settled {
		e.logger.Debug("favorite superseded during delivery", "restaurant_id", p.RestaurantID, "hash", m.Hash)
	}
	e.invalidateByPrefix(ctx, pathRestaurants)
	return nil
}

// mirrorQueuedFavorite records the unsynced local value while m is still the queued toggle.
func (e *Engine) mirrorQueuedFavorite(ctx context.Context, m model.PendingMutation, p model.FavoritePayload) error {
	_, err := e.whileQueued(ctx, m, func() error {
		return e.mirrorFavorite(ctx, p.RestaurantID, p.IsFavorite, false)
	})
	return err
}

// mirrorFavorite applies a favorite value to the cached restaurant. A restaurant that is
// not cached yet is left alone; the queued mutation carries the value until it is.
func (e *Engine) mirrorFavorite(ctx context.Context, restaurantID int64, isFavorite, synced bool) error {
	r, err := e.store.Restaurants.Get(ctx, restaurantID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug("favorite for uncached restaurant", "restaurant_id", restaurantID)
		return nil
	}
	if err != nil {
		return err
	}

	r.IsFavorite = isFavorite
	r.FavoriteSynced = synced
	return e.store.Restaurants.Put(ctx, r)
}

func validateReview(r model.Review) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RestaurantID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Name, validation.Required),
	)
}

// SubmitReview stores a review locally and queues it before sending it to the remote
// service. A review without an id gets a provisional one. When the remote service confirms
// the review under a different id, the provisional record is replaced by the confirmed one.
// Offline or on a retryable failure the review stays queued and the local copy is returned.
func (e *Engine) SubmitReview(ctx context.Context, review model.Review) (model.Review, error) {
	if err := validateReview(review); err != nil {
		return model.Review{}, fmt.Errorf("restaurantcache: invalid review: %w", err)
	}

	now := e.now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	if review.UpdatedAt.IsZero() {
		review.UpdatedAt = review.CreatedAt
	}
	review.Synced = false

	if err := e.persistLocalReview(ctx, &review); err != nil {
		return model.Review{}, err
	}

	rm := model.ReviewMutation{
		LocalID:      review.ID,
		RestaurantID: review.RestaurantID,
		Name:         review.Name,
		Rating:       review.Rating,
		Comments:     review.Comments,
		CreatedAtMs:  review.CreatedAt.UnixMilli(),
	}
	m, err := e.enqueue(ctx, model.KindReviewCreate, rm)
	if err != nil {
		return review, err
	}

	if !e.online() {
		e.logger.Debug("offline, review queued", "restaurant_id", review.RestaurantID, "local_id", review.ID)
		return review, nil
	}

	if _, err := e.claim(ctx, m); err != nil {
		if errors.Is(err, connectivity.ErrSkipped) {
			e.logger.Debug("review handled by another delivery", "local_id", review.ID, "reason", err)
			return review, nil
		}
		return review, err
	}
	defer e.release(m.Hash)

	confirmed, err := e.deliverReview(ctx, m, rm)
	switch {
	case err == nil:
		return confirmed, nil
	case remote.IsRetryable(err):
		e.logger.Warn("review submission deferred", "restaurant_id", review.RestaurantID, "error", err)
		return review, nil
	default:
		e.queueMu.Lock()
		derr := errors.Join(e.dequeue(ctx, m.Hash), e.store.Reviews.Delete(ctx, review.ID))
		e.queueMu.Unlock()
		if derr != nil {
			return model.Review{}, errors.Join(err, derr)
		}
		return model.Review{}, err
	}
}

// persistLocalReview inserts the review. Without an id it takes count+1 and moves upward
// while the id is taken, so an existing record is never overwritten.
func (e *Engine) persistLocalReview(ctx context.Context, review *model.Review) error {
	if review.ID != 0 {
		return e.store.Reviews.Put(ctx, review)
	}

	e.reviewMu.Lock()
	defer e.reviewMu.Unlock()

	n, err := e.store.Reviews.Count(ctx)
	if err != nil {
		return err
	}
	for id := int64(n) + 1; ; id++ {
		review.ID = id
		err := e.store.Reviews.Add(ctx, review)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrKeyExists) {
			review.ID = 0
			return err
		}
	}
}

// deliverReview posts the trimmed review payload and reconciles the local record with the
// remote response before removing the mutation from the queue. The caller holds the claim
// on m, so the review is posted at most once per delivery.
func (e *Engine) deliverReview(ctx context.Context, m model.PendingMutation, rm model.ReviewMutation) (model.Review, error) {
	ctx = remote.WithIdempotencyKey(ctx, IdempotencyKey(m.Hash))
	payload := model.ReviewPayload{
		RestaurantID: rm.RestaurantID,
		Name:         rm.Name,
		Rating:       rm.Rating,
		Comments:     rm.Comments,
	}

	var resp reviewWire
	if err := e.remote.PostJSON(ctx, pathReviews, payload, &resp); err != nil {
		return model.Review{}, err
	}

	e.queueMu.Lock()
	confirmed, err := e.reconcileReview(ctx, rm, e.normalize.review(resp))
	if err == nil {
		err = e.dequeue(ctx, m.Hash)
	}
	e.queueMu.Unlock()
	if err != nil {
		return confirmed, err
	}
	e.invalidateByPrefix(ctx, pathReviews)
	return confirmed, nil
}

// reconcileReview settles the provisional record against the server copy. A server id that
// differs from the provisional one replaces it; otherwise the local record is marked synced.
func (e *Engine) reconcileReview(ctx context.Context, rm model.ReviewMutation, server model.Review) (model.Review, error) {
	local := model.Review{
		ID:           rm.LocalID,
		RestaurantID: rm.RestaurantID,
		Name:         rm.Name,
		Rating:       rm.Rating,
		Comments:     rm.Comments,
	}
	if cached, err := e.store.Reviews.Get(ctx, rm.LocalID); err == nil {
		local = *cached
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.Review{}, err
	}

	confirmed := local
	confirmed.Synced = true
	if server.ID != 0 {
		confirmed.ID = server.ID
	}
	if !server.CreatedAt.IsZero() {
		confirmed.CreatedAt = server.CreatedAt
	}
	if !server.UpdatedAt.IsZero() {
		confirmed.UpdatedAt = server.UpdatedAt
	}

	if confirmed.ID != rm.LocalID {
		if err := e.store.Reviews.Delete(ctx, rm.LocalID); err != nil {
			return model.Review{}, err
		}
		e.logger.Debug("provisional review replaced", "local_id", rm.LocalID, "remote_id", confirmed.ID)
	}
	if err := e.store.Reviews.Put(ctx, &confirmed); err != nil {
		return model.Review{}, err
	}
	return confirmed, nil
}

// Replay delivers one queued mutation. The entry is removed only after the remote service
// confirms it; on error it stays queued and the caller decides what to do with it. An entry
// that was delivered, superseded or claimed since m was read yields connectivity.ErrSkipped.
func (e *Engine) Replay(ctx context.Context, m model.PendingMutation) error {
	switch m.Kind {
	case model.KindFavoriteUpdate, model.KindReviewCreate:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMutation, m.Kind)
	}

	current, err := e.claim(ctx, m)
	if err != nil {
		return err
	}
	defer e.release(m.Hash)

	if current.Kind == model.KindFavoriteUpdate {
		var p model.FavoritePayload
		if err := msgpack.Unmarshal(current.Payload, &p); err != nil {
			return fmt.Errorf("restaurantcache: decode %s %s: %w", current.Kind, current.Hash, err)
		}
		return e.deliverFavorite(ctx, current, p)
	}

	var rm model.ReviewMutation
	if err := msgpack.Unmarshal(current.Payload, &rm); err != nil {
		return fmt.Errorf("restaurantcache: decode %s %s: %w", current.Kind, current.Hash, err)
	}
	_, err = e.deliverReview(ctx, current, rm)
	return err
}
