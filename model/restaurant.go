// Package model holds the records shared by the durable store, the remote client and the
// offline engine. The struct tags drive both the JSON wire format and the bun table layout.
package model

import "github.com/uptrace/bun"

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Restaurant is a cached restaurant record.
//
// IsFavorite may run ahead of the remote copy; FavoriteSynced reports whether the
// remote service has confirmed the current value.
type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants,alias:r" json:"-"`

	ID             int64             `bun:"id,pk" json:"id"`
	Name           string            `bun:"name,notnull" json:"name"`
	Neighborhood   string            `bun:"neighborhood" json:"neighborhood"`
	Photograph     string            `bun:"photograph" json:"photograph,omitempty"`
	Address        string            `bun:"address" json:"address"`
	LatLng         LatLng            `bun:"latlng,type:json" json:"latlng"`
	CuisineType    string            `bun:"cuisine_type" json:"cuisine_type"`
	OperatingHours map[string]string `bun:"operating_hours,type:json" json:"operating_hours,omitempty"`
	IsFavorite     bool              `bun:"is_favorite,notnull" json:"is_favorite"`
	FavoriteSynced bool              `bun:"favorite_synced,notnull" json:"favorite_synced"`
}
