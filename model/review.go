package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Review is a restaurant review. ID may be a provisional local value until the remote
// service assigns one.
type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:rv" json:"-"`

	ID           int64     `bun:"id,pk" json:"id"`
	RestaurantID int64     `bun:"restaurant_id,notnull" json:"restaurant_id"`
	Name         string    `bun:"name" json:"name"`
	CreatedAt    time.Time `bun:"created_at,nullzero" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero" json:"updatedAt"`
	Rating       int       `bun:"rating" json:"rating"`
	Comments     string    `bun:"comments" json:"comments"`
	Synced       bool      `bun:"synced,notnull" json:"synced"`
}

// ReviewPayload is the body sent when creating a review remotely. Server-owned fields
// (id, timestamps) are never part of it.
type ReviewPayload struct {
	RestaurantID int64  `json:"restaurant_id" msgpack:"restaurant_id"`
	Name         string `json:"name" msgpack:"name"`
	Rating       int    `json:"rating" msgpack:"rating"`
	Comments     string `json:"comments" msgpack:"comments"`
}
