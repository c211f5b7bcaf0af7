package restaurantcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-restaurant-sync/model"
)

// flexInt decodes a JSON number or a numeric string. The remote service is not consistent
// about either.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		*n = flexInt(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = flexInt(f)
	return nil
}

type restaurantWire struct {
	ID             flexInt           `json:"id"`
	Name           string            `json:"name"`
	Neighborhood   string            `json:"neighborhood"`
	Photograph     string            `json:"photograph"`
	Address        string            `json:"address"`
	LatLng         model.LatLng      `json:"latlng"`
	CuisineType    string            `json:"cuisine_type"`
	OperatingHours map[string]string `json:"operating_hours"`
	IsFavorite     json.RawMessage   `json:"is_favorite"`
}

type reviewWire struct {
	ID           flexInt         `json:"id"`
	RestaurantID flexInt         `json:"restaurant_id"`
	Name         string          `json:"name"`
	CreatedAt    json.RawMessage `json:"createdAt"`
	UpdatedAt    json.RawMessage `json:"updatedAt"`
	Rating       flexInt         `json:"rating"`
	Comments     string          `json:"comments"`
}

// normalizer turns wire records into store records. Values it cannot interpret are logged
// at debug level and mapped to their zero value.
type normalizer struct {
	logger *slog.Logger
}

func (n normalizer) restaurant(w restaurantWire) model.Restaurant {
	return model.Restaurant{
		ID:             int64(w.ID),
		Name:           w.Name,
		Neighborhood:   w.Neighborhood,
		Photograph:     w.Photograph,
		Address:        w.Address,
		LatLng:         w.LatLng,
		CuisineType:    w.CuisineType,
		OperatingHours: w.OperatingHours,
		IsFavorite:     n.favorite(int64(w.ID), w.IsFavorite),
		FavoriteSynced: true,
	}
}

func (n normalizer) restaurants(in []restaurantWire) []model.Restaurant {
	out := make([]model.Restaurant, 0, len(in))
	for _, w := range in {
		out = append(out, n.restaurant(w))
	}
	return out
}

func (n normalizer) review(w reviewWire) model.Review {
	return model.Review{
		ID:           int64(w.ID),
		RestaurantID: int64(w.RestaurantID),
		Name:         w.Name,
		CreatedAt:    n.timestamp("createdAt", w.CreatedAt),
		UpdatedAt:    n.timestamp("updatedAt", w.UpdatedAt),
		Rating:       int(w.Rating),
		Comments:     w.Comments,
		Synced:       true,
	}
}

func (n normalizer) reviews(in []reviewWire) []model.Review {
	out := make([]model.Review, 0, len(in))
	for _, w := range in {
		out = append(out, n.review(w))
	}
	return out
}

// favorite maps the remote favorite flag to a bool:
//
//	true, "true", 1, "1"                   => true
//	false, "false", 0, "0", "", null, absent => false
//
// Anything else is false.
func (n normalizer) favorite(id int64, raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		n.logger.Debug("unrecognized favorite value", "restaurant_id", id, "value", string(raw))
		return false
	}

	switch val := v.(type) {
	case bool:
		return val
	case float64:
		switch val {
		case 1:
			return true
		case 0:
			return false
		}
	case string:
		switch val {
		case "true", "1":
			return true
		case "false", "0", "":
			return false
		}
	}

	n.logger.Debug("unrecognized favorite value", "restaurant_id", id, "value", string(raw))
	return false
}

// timestamp accepts epoch milliseconds (number or numeric string) and RFC 3339 strings.
func (n normalizer) timestamp(field string, raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	if raw[0] != '"' {
		var ms float64
		if err := json.Unmarshal(raw, &ms); err == nil {
			return time.UnixMilli(int64(ms)).UTC()
		}
	} else {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
				return time.UnixMilli(ms).UTC()
			}
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t.UTC()
			}
		}
	}

	n.logger.Debug("unrecognized timestamp", "field", field, "value", string(raw))
	return time.Time{}
}
