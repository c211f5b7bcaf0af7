package model

import (
	"time"

	"github.com/uptrace/bun"
)

// MutationKind identifies the write a PendingMutation replays.
type MutationKind string

const (
	KindFavoriteUpdate MutationKind = "favorite-update"
	KindReviewCreate   MutationKind = "review-create"
)

// MutationStatus tracks whether an entry is still eligible for replay.
type MutationStatus string

const (
	StatusPending MutationStatus = "pending"
	StatusFailed  MutationStatus = "failed"
)

// PendingMutation is a durably recorded write awaiting replay. Hash is the content hash
// of Payload and doubles as the primary key, so an identical payload is never queued twice.
type PendingMutation struct {
	bun.BaseModel `bun:"table:pending_mutations,alias:pm" json:"-"`

	Hash      string         `bun:"hash,pk" json:"hash"`
	Seq       int64          `bun:"seq,notnull" json:"seq"`
	Kind      MutationKind   `bun:"kind,notnull" json:"kind"`
	Payload   []byte         `bun:"payload" json:"payload"`
	Status    MutationStatus `bun:"status,notnull" json:"status"`
	Attempts  int            `bun:"attempts,notnull" json:"attempts"`
	LastError string         `bun:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time      `bun:"created_at,nullzero" json:"created_at"`
}

// FavoritePayload is the serialized form of a favorite-update mutation.
type FavoritePayload struct {
	RestaurantID int64 `json:"restaurant_id" msgpack:"restaurant_id"`
	IsFavorite   bool  `json:"is_favorite" msgpack:"is_favorite"`
}

// ReviewMutation is the serialized form of a review-create mutation. It keeps the full
// local review so the provisional record can be reconciled after replay.
type ReviewMutation struct {
	LocalID      int64  `msgpack:"local_id"`
	RestaurantID int64  `msgpack:"restaurant_id"`
	Name         string `msgpack:"name"`
	Rating       int    `msgpack:"rating"`
	Comments     string `msgpack:"comments"`
	CreatedAtMs  int64  `msgpack:"created_at_ms"`
}
