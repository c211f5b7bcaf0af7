package restaurantcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-restaurant-sync/connectivity"
	"github.com/goliatone/go-restaurant-sync/model"
	"github.com/goliatone/go-restaurant-sync/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"
)

// MutationHash is the content hash identifying a queued payload. Equal payloads of the same
// kind hash identically; collisions between distinct payloads are not detected.
func MutationHash(kind model.MutationKind, payload []byte) string {
	d := xxhash.New()
	d.WriteString(string(kind))
	d.Write([]byte{0})
	d.Write(payload)
	return fmt.Sprintf("%016x", d.Sum64())
}

// IdempotencyKey derives the Idempotency-Key sent when a queued mutation is delivered.
func IdempotencyKey(hash string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("restaurant-sync:mutation:"+hash)).String()
}

// enqueue records a mutation before any remote attempt. An identical payload already in the
// queue is returned as-is instead of being queued twice.
func (e *Engine) enqueue(ctx context.Context, kind model.MutationKind, v any) (model.PendingMutation, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return model.PendingMutation{}, fmt.Errorf("restaurantcache: encode %s: %w", kind, err)
	}
	hash := MutationHash(kind, payload)

	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	existing, err := e.store.Mutations.Get(ctx, hash)
	if err == nil {
		e.logger.Debug("mutation already queued", "kind", kind, "hash", hash)
		if existing.Status == model.StatusFailed {
			existing.Status = model.StatusPending
			existing.Attempts = 0
			if err := e.store.Mutations.Put(ctx, existing); err != nil {
				return model.PendingMutation{}, err
			}
		}
		return *existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.PendingMutation{}, err
	}

	// Read the seq before superseding so a replacement never reuses the seq it replaces.
	seq, err := e.store.Mutations.MaxInt(ctx, "seq")
	if err != nil {
		return model.PendingMutation{}, err
	}

	if fav, ok := v.(model.FavoritePayload); ok {
		if err := e.supersedeFavorites(ctx, fav.RestaurantID); err != nil {
			return model.PendingMutation{}, err
		}
	}

	m := model.PendingMutation{
		Hash:      hash,
		Seq:       seq + 1,
		Kind:      kind,
		Payload:   payload,
		Status:    model.StatusPending,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.Mutations.Add(ctx, &m); err != nil {
		return model.PendingMutation{}, err
	}

	e.logger.Debug("mutation queued", "kind", kind, "hash", hash, "seq", m.Seq)
	return m, nil
}

// supersedeFavorites drops queued favorite updates for restaurantID so only the newest
// local value is replayed.
func (e *Engine) supersedeFavorites(ctx context.Context, restaurantID int64) error {
	queued, err := e.favoriteMutations(ctx, false)
	if err != nil {
		return err
	}
	for _, q := range queued {
		if q.payload.RestaurantID != restaurantID {
			continue
		}
		if err := e.store.Mutations.Delete(ctx, q.mutation.Hash); err != nil {
			return err
		}
		e.logger.Debug("favorite mutation superseded", "restaurant_id", restaurantID, "hash", q.mutation.Hash)
	}
	return nil
}

type queuedFavorite struct {
	mutation model.PendingMutation
	payload  model.FavoritePayload
}

func (e *Engine) pendingFavorites(ctx context.Context) ([]queuedFavorite, error) {
	return e.favoriteMutations(ctx, true)
}

func (e *Engine) favoriteMutations(ctx context.Context, pendingOnly bool) ([]queuedFavorite, error) {
	entries, err := e.store.Mutations.GetAll(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("kind = ?", model.KindFavoriteUpdate)
		if pendingOnly {
			q = q.Where("status = ?", model.StatusPending)
		}
		return q.Order("seq ASC")
	})
	if err != nil {
		return nil, err
	}

	out := make([]queuedFavorite, 0, len(entries))
	for _, m := range entries {
		var p model.FavoritePayload
		if err := msgpack.Unmarshal(m.Payload, &p); err != nil {
			e.logger.Warn("undecodable favorite mutation", "hash", m.Hash, "error", err)
			continue
		}
		out = append(out, queuedFavorite{mutation: m, payload: p})
	}
	return out, nil
}

// Pending returns the mutations eligible for replay in insertion order.
func (e *Engine) Pending(ctx context.Context) ([]model.PendingMutation, error) {
	return e.store.Mutations.GetAll(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status = ?", model.StatusPending).Order("seq ASC")
	})
}

// Mutations returns every queued entry, including the ones marked failed.
func (e *Engine) Mutations(ctx context.Context) ([]model.PendingMutation, error) {
	return e.store.Mutations.GetAll(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("seq ASC")
	})
}

// RecordFailure counts a rejected replay attempt. Once the entry reaches maxAttempts it is
// marked failed and no longer replayed. Only the row still queued under m's seq is updated;
// a delivered or superseded entry yields connectivity.ErrSkipped.
func (e *Engine) RecordFailure(ctx context.Context, m model.PendingMutation, cause error, maxAttempts int) (model.PendingMutation, error) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	current, err := e.queuedEntry(ctx, m)
	if err != nil {
		return m, err
	}
	updated := *current
	updated.Attempts++
	if cause != nil {
		updated.LastError = cause.Error()
	}
	if maxAttempts > 0 && updated.Attempts >= maxAttempts {
		updated.Status = model.StatusFailed
	}
	if err := e.store.Mutations.Put(ctx, &updated); err != nil {
		return updated, err
	}

	e.logger.Warn("mutation replay rejected",
		"kind", updated.Kind,
		"hash", updated.Hash,
		"attempts", updated.Attempts,
		"status", updated.Status,
		"error", cause,
	)
	return updated, nil
}

// Discard removes a queued entry regardless of its status.
func (e *Engine) Discard(ctx context.Context, hash string) error {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	return e.dequeue(ctx, hash)
}

// Retry resets a failed entry so the next drain replays it again.
func (e *Engine) Retry(ctx context.Context, hash string) error {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	m, err := e.store.Mutations.Get(ctx, hash)
	if err != nil {
		return err
	}
	m.Status = model.StatusPending
	m.Attempts = 0
	m.LastError = ""
	return e.store.Mutations.Put(ctx, m)
}

// claim reserves m for delivery by the caller. It fails with connectivity.ErrSkipped when
// another caller is delivering the same entry or when m is no longer the pending row for
// its hash. A successful claim must be released.
func (e *Engine) claim(ctx context.Context, m model.PendingMutation) (model.PendingMutation, error) {
	if _, loaded := e.inflight.LoadOrStore(m.Hash, struct{}{}); loaded {
		return m, fmt.Errorf("%w: %s is being delivered", connectivity.ErrSkipped, m.Hash)
	}

	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	current, err := e.queuedEntry(ctx, m)
	if err == nil && current.Status != model.StatusPending {
		err = fmt.Errorf("%w: %s is %s", connectivity.ErrSkipped, m.Hash, current.Status)
	}
	if err != nil {
		e.inflight.Delete(m.Hash)
		return m, err
	}
	return *current, nil
}

func (e *Engine) release(hash string) {
	e.inflight.Delete(hash)
}

// queuedEntry returns the stored row for m if it is still queued under the same seq.
// The caller holds queueMu.
func (e *Engine) queuedEntry(ctx context.Context, m model.PendingMutation) (*model.PendingMutation, error) {
	current, err := e.store.Mutations.Get(ctx, m.Hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s is no longer queued", connectivity.ErrSkipped, m.Hash)
	}
	if err != nil {
		return nil, err
	}
	if current.Seq != m.Seq {
		return nil, fmt.Errorf("%w: %s was requeued as seq %d", connectivity.ErrSkipped, m.Hash, current.Seq)
	}
	return current, nil
}

// whileQueued runs fn under queueMu if m is still queued, and reports whether it ran.
func (e *Engine) whileQueued(ctx context.Context, m model.PendingMutation, fn func() error) (bool, error) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	if _, err := e.queuedEntry(ctx, m); err != nil {
		if errors.Is(err, connectivity.ErrSkipped) {
			return false, nil
		}
		return false, err
	}
	return true, fn()
}

// dequeue deletes the row for hash. The caller holds queueMu.
func (e *Engine) dequeue(ctx context.Context, hash string) error {
	return e.store.Mutations.Delete(ctx, hash)
}
