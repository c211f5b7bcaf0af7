package restaurantcache

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/goliatone/go-restaurant-sync/model"
)

func testNormalizer() normalizer {
	return normalizer{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestNormalizer_Favorite(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		raw  string
		want bool
	}{
		{raw: `true`, want: true},
		{raw: `"true"`, want: true},
		{raw: `1`, want: true},
		{raw: `"1"`, want: true},
		{raw: `false`},
		{raw: `"false"`},
		{raw: `0`},
		{raw: `"0"`},
		{raw: `""`},
		{raw: `null`},
		{raw: ``},
		{raw: `"yes"`},
		{raw: `2`},
		{raw: `{"a":1}`},
		{raw: `"TRUE"`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := n.favorite(1, json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("favorite(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizer_Timestamp(t *testing.T) {
	n := testNormalizer()
	want := time.UnixMilli(1504095567183).UTC()

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "epoch millis", raw: `1504095567183`, want: want},
		{name: "epoch millis string", raw: `"1504095567183"`, want: want},
		{name: "rfc3339", raw: `"2017-08-30T12:19:27.183Z"`, want: want},
		{name: "null", raw: `null`},
		{name: "absent", raw: ``},
		{name: "garbage", raw: `"last tuesday"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.timestamp("createdAt", json.RawMessage(tt.raw))
			if !got.Equal(tt.want) {
				t.Errorf("timestamp(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: `5`, want: 5},
		{raw: `"5"`, want: 5},
		{raw: `" 12 "`, want: 12},
		{raw: `""`, want: 0},
		{raw: `null`, want: 0},
		{raw: `"five"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var n flexInt
			err := json.Unmarshal([]byte(tt.raw), &n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && int64(n) != tt.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.raw, n, tt.want)
			}
		})
	}
}

func TestNormalizer_Review(t *testing.T) {
	var w reviewWire
	raw := `{"id":"4","restaurant_id":4,"name":"Ida","createdAt":1504095567183,"rating":"5","comments":"Worth the line."}`
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	got := testNormalizer().review(w)
	want := model.Review{
		ID:           4,
		RestaurantID: 4,
		Name:         "Ida",
		CreatedAt:    time.UnixMilli(1504095567183).UTC(),
		Rating:       5,
		Comments:     "Worth the line.",
		Synced:       true,
	}
	if got.ID != want.ID || got.RestaurantID != want.RestaurantID || got.Rating != want.Rating ||
		!got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.IsZero() || !got.Synced {
		t.Errorf("review() = %+v, want %+v", got, want)
	}
}

func TestFilterRestaurants(t *testing.T) {
	restaurants := []model.Restaurant{
		{ID: 1, CuisineType: "Thai", Neighborhood: "Manhattan"},
		{ID: 2, CuisineType: "Thai", Neighborhood: "Brooklyn"},
		{ID: 3, CuisineType: "Deli", Neighborhood: "Manhattan"},
	}

	tests := []struct {
		name         string
		cuisine      string
		neighborhood string
		want         []int64
	}{
		{name: "no filter", cuisine: All, neighborhood: All, want: []int64{1, 2, 3}},
		{name: "any cuisine in Manhattan", cuisine: All, neighborhood: "Manhattan", want: []int64{1, 3}},
		{name: "Thai anywhere", cuisine: "Thai", neighborhood: All, want: []int64{1, 2}},
		{name: "both", cuisine: "Thai", neighborhood: "Brooklyn", want: []int64{2}},
		{name: "no match", cuisine: "Deli", neighborhood: "Brooklyn", want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRestaurants(restaurants, tt.cuisine, tt.neighborhood)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d records", tt.want, len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected id %d, got %d", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestDistinct_FirstSeenOrder(t *testing.T) {
	restaurants := []model.Restaurant{
		{CuisineType: "Thai"},
		{CuisineType: "Thai"},
		{CuisineType: "Deli"},
	}

	got := Distinct(restaurants, func(r model.Restaurant) string { return r.CuisineType })
	if len(got) != 2 || got[0] != "Thai" || got[1] != "Deli" {
		t.Errorf("expected [Thai Deli], got %v", got)
	}

	if empty := Distinct([]model.Restaurant{}, func(r model.Restaurant) string { return r.Name }); empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestMutationHash(t *testing.T) {
	a := MutationHash(model.KindFavoriteUpdate, []byte("payload"))
	b := MutationHash(model.KindFavoriteUpdate, []byte("payload"))
	c := MutationHash(model.KindReviewCreate, []byte("payload"))
	d := MutationHash(model.KindFavoriteUpdate, []byte("payload2"))

	if a != b {
		t.Errorf("expected equal payloads to hash identically: %s %s", a, b)
	}
	if a == c || a == d {
		t.Error("expected different kinds or payloads to hash differently")
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex characters, got %q", a)
	}
	if IdempotencyKey(a) != IdempotencyKey(b) || IdempotencyKey(a) == IdempotencyKey(c) {
		t.Error("expected idempotency keys to follow the hash")
	}
}
