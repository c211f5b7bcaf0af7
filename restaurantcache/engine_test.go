package restaurantcache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-restaurant-sync/cache"
	"github.com/goliatone/go-restaurant-sync/model"
	"github.com/goliatone/go-restaurant-sync/pkg/testsupport"
	"github.com/goliatone/go-restaurant-sync/remote"
	"github.com/goliatone/go-restaurant-sync/store"
)

type toggle struct {
	online atomic.Bool
}

func newToggle(online bool) *toggle {
	t := &toggle{}
	t.online.Store(online)
	return t
}

func (t *toggle) Online() bool { return t.online.Load() }
func (t *toggle) Set(online bool) { t.online.Store(online) }

type fixture struct {
	engine *Engine
	remote *testsupport.FakeRemote
	store  *store.Store
	conn   *toggle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := testsupport.NewFakeRemote(t)
	client, err := remote.New(fake.URL(), remote.WithLogger(logger))
	if err != nil {
		t.Fatalf("remote.New() error = %v", err)
	}

	st, err := store.Open(ctx, store.DefaultConfig(), store.WithLogger(logger))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc, err := cache.NewCacheService(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewCacheService() error = %v", err)
	}

	conn := newToggle(true)
	engine := New(st, client, svc, cache.NewDefaultKeySerializer(),
		WithConnectivity(conn),
		WithLogger(logger),
	)
	return &fixture{engine: engine, remote: fake, store: st, conn: conn}
}

func ids(restaurants []model.Restaurant) []int64 {
	out := make([]int64, len(restaurants))
	for i, r := range restaurants {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFetchRestaurants_PopulatesStoreOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.engine.FetchRestaurants(ctx)
	if err != nil {
		t.Fatalf("FetchRestaurants() error = %v", err)
	}
	if len(first) != 10 {
		t.Fatalf("expected 10 restaurants, got %d", len(first))
	}
	if n := f.remote.Calls(http.MethodGet, "restaurants"); n != 1 {
		t.Fatalf("expected 1 remote call, got %d", n)
	}

	stored, err := f.store.Restaurants.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if stored != 10 {
		t.Errorf("expected 10 stored restaurants, got %d", stored)
	}

	second, err := f.engine.FetchRestaurants(ctx)
	if err != nil {
		t.Fatalf("second FetchRestaurants() error = %v", err)
	}
	if len(second) != 10 {
		t.Errorf("expected 10 restaurants from store, got %d", len(second))
	}
	if n := f.remote.TotalCalls(); n != 1 {
		t.Errorf("expected no further remote calls, got %d total", n)
	}
}

func TestFetchRestaurants_ColdReadersShareOneFetch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.FetchRestaurants(ctx); err != nil {
				t.Errorf("FetchRestaurants() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := f.remote.Calls(http.MethodGet, "restaurants"); n != 1 {
		t.Errorf("expected 1 remote call for concurrent cold readers, got %d", n)
	}
}

func TestFetchRestaurants_NormalizesFavorites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	restaurants, err := f.engine.FetchRestaurants(ctx)
	if err != nil {
		t.Fatalf("FetchRestaurants() error = %v", err)
	}

	want := map[int64]bool{1: true, 2: false, 3: false, 4: true, 5: false, 6: true, 7: false, 8: false, 9: true, 10: false}
	for _, r := range restaurants {
		if r.IsFavorite != want[r.ID] {
			t.Errorf("restaurant %d: expected favorite %v, got %v", r.ID, want[r.ID], r.IsFavorite)
		}
		if !r.FavoriteSynced {
			t.Errorf("restaurant %d: expected remote record to be synced", r.ID)
		}
	}

	stored, err := f.store.Restaurants.Get(ctx, int64(1))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !stored.IsFavorite || stored.OperatingHours["Monday"] == "" || stored.LatLng.Lat == 0 {
		t.Errorf("unexpected stored record %+v", stored)
	}
}

func TestFetchRestaurants_RemoteFailurePropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.SetOffline(true)

	_, err := f.engine.FetchRestaurants(ctx)
	if !remote.IsNetworkError(err) {
		t.Fatalf("expected network error, got %v", err)
	}

	f.remote.SetOffline(false)
	f.remote.FailNext(http.StatusInternalServerError, 1)
	_, err = f.engine.FetchRestaurants(ctx)
	var remoteErr *remote.RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 RemoteError, got %v", err)
	}

	if n, _ := f.store.Restaurants.Count(ctx); n != 0 {
		t.Errorf("expected nothing stored after failed reads, got %d", n)
	}
}

func TestFetchRestaurantByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, err := f.engine.FetchRestaurantByID(ctx, 4)
	if err != nil {
		t.Fatalf("FetchRestaurantByID() error = %v", err)
	}
	if r.Name != "Katz's Delicatessen" {
		t.Errorf("unexpected restaurant %q", r.Name)
	}

	_, err = f.engine.FetchRestaurantByID(ctx, 404)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
	if nf.ID != 404 || nf.Kind != "restaurant" {
		t.Errorf("unexpected not found error %+v", nf)
	}
}

func TestFetchRestaurants_FilterComposition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name         string
		cuisine      string
		neighborhood string
		want         []int64
	}{
		{name: "all cuisines in Manhattan", cuisine: All, neighborhood: "Manhattan", want: []int64{1, 3, 4, 7, 8}},
		{name: "Asian anywhere", cuisine: "Asian", neighborhood: All, want: []int64{1, 3, 9}},
		{name: "Asian in Manhattan", cuisine: "Asian", neighborhood: "Manhattan", want: []int64{1, 3}},
		{name: "unknown cuisine", cuisine: "Thai", neighborhood: All, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.engine.FetchRestaurantsByCuisineAndNeighborhood(ctx, tt.cuisine, tt.neighborhood)
			if err != nil {
				t.Fatalf("FetchRestaurantsByCuisineAndNeighborhood() error = %v", err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ids(got))
			}
		})
	}

	pizza, err := f.engine.FetchRestaurantsByCuisine(ctx, "Pizza")
	if err != nil {
		t.Fatalf("FetchRestaurantsByCuisine() error = %v", err)
	}
	if !equalIDs(ids(pizza), []int64{2, 5}) {
		t.Errorf("expected Pizza [2 5], got %v", ids(pizza))
	}

	queens, err := f.engine.FetchRestaurantsByNeighborhood(ctx, "Queens")
	if err != nil {
		t.Fatalf("FetchRestaurantsByNeighborhood() error = %v", err)
	}
	if !equalIDs(ids(queens), []int64{9, 10}) {
		t.Errorf("expected Queens [9 10], got %v", ids(queens))
	}

	if n := f.remote.TotalCalls(); n != 1 {
		t.Errorf("expected derived reads to share one remote fetch, got %d calls", n)
	}
}

func TestFetchDistinctValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cuisines, err := f.engine.FetchCuisines(ctx)
	if err != nil {
		t.Fatalf("FetchCuisines() error = %v", err)
	}
	wantCuisines := []string{"Asian", "Pizza", "American", "Mexican"}
	if len(cuisines) != len(wantCuisines) {
		t.Fatalf("expected %v, got %v", wantCuisines, cuisines)
	}
	for i := range wantCuisines {
		if cuisines[i] != wantCuisines[i] {
			t.Errorf("expected %v, got %v", wantCuisines, cuisines)
			break
		}
	}

	neighborhoods, err := f.engine.FetchNeighborhoods(ctx)
	if err != nil {
		t.Fatalf("FetchNeighborhoods() error = %v", err)
	}
	wantNeighborhoods := []string{"Manhattan", "Brooklyn", "Queens"}
	if len(neighborhoods) != 3 || neighborhoods[0] != wantNeighborhoods[0] ||
		neighborhoods[1] != wantNeighborhoods[1] || neighborhoods[2] != wantNeighborhoods[2] {
		t.Errorf("expected %v, got %v", wantNeighborhoods, neighborhoods)
	}
}

func TestFetchReviewsByRestaurantID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reviews, err := f.engine.FetchReviewsByRestaurantID(ctx, 1)
	if err != nil {
		t.Fatalf("FetchReviewsByRestaurantID() error = %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(reviews))
	}
	for _, r := range reviews {
		if r.CreatedAt.IsZero() {
			t.Errorf("review %d: expected createdAt to be parsed", r.ID)
		}
		if !r.Synced {
			t.Errorf("review %d: expected remote review to be synced", r.ID)
		}
	}

	if _, err := f.engine.FetchReviewsByRestaurantID(ctx, 1); err != nil {
		t.Fatalf("second FetchReviewsByRestaurantID() error = %v", err)
	}
	if n := f.remote.Calls(http.MethodGet, "reviews"); n != 1 {
		t.Errorf("expected cached reviews to be served from store, got %d remote calls", n)
	}

	stringRating, err := f.engine.FetchReviewsByRestaurantID(ctx, 4)
	if err != nil {
		t.Fatalf("FetchReviewsByRestaurantID(4) error = %v", err)
	}
	if len(stringRating) != 1 || stringRating[0].Rating != 5 {
		t.Errorf("expected rating \"5\" to normalize to 5, got %+v", stringRating)
	}
}

func TestFetchReviewsByRestaurantID_EmptyIsValid(t *testing.T) {
	f := newFixture(t)

	reviews, err := f.engine.FetchReviewsByRestaurantID(context.Background(), 3)
	if err != nil {
		t.Fatalf("FetchReviewsByRestaurantID() error = %v", err)
	}
	if reviews == nil || len(reviews) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", reviews)
	}
}

func TestFetchReviewsByRestaurantID_NetworkErrorIsNotEmpty(t *testing.T) {
	f := newFixture(t)
	f.remote.SetOffline(true)

	reviews, err := f.engine.FetchReviewsByRestaurantID(context.Background(), 3)
	if !remote.IsNetworkError(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if reviews != nil {
		t.Errorf("expected no result alongside the error, got %v", reviews)
	}
}

func TestFetchReviews_All(t *testing.T) {
	f := newFixture(t)

	reviews, err := f.engine.FetchReviews(context.Background())
	if err != nil {
		t.Fatalf("FetchReviews() error = %v", err)
	}
	if len(reviews) != 4 {
		t.Errorf("expected 4 reviews, got %d", len(reviews))
	}
}

func TestRefreshRestaurants_KeepsUnsyncedFavorite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.engine.FetchRestaurants(ctx); err != nil {
		t.Fatalf("FetchRestaurants() error = %v", err)
	}

	f.conn.Set(false)
	if err := f.engine.SetFavorite(ctx, 2, true); err != nil {
		t.Fatalf("SetFavorite() error = %v", err)
	}
	f.conn.Set(true)

	f.remote.SetRestaurants([]map[string]any{
		{"id": 2, "name": "Emily", "neighborhood": "Brooklyn", "cuisine_type": "Pizza", "is_favorite": "false"},
		{"id": 3, "name": "Kang Ho Dong Baekjeong", "neighborhood": "Manhattan", "cuisine_type": "Korean", "is_favorite": "false"},
	})

	refreshed, err := f.engine.RefreshRestaurants(ctx)
	if err != nil {
		t.Fatalf("RefreshRestaurants() error = %v", err)
	}
	if len(refreshed) != 2 {
		t.Fatalf("expected 2 refreshed restaurants, got %d", len(refreshed))
	}
	if n := f.remote.Calls(http.MethodGet, "restaurants"); n != 2 {
		t.Errorf("expected refresh to hit the remote service again, got %d calls", n)
	}

	emily, err := f.store.Restaurants.Get(ctx, int64(2))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !emily.IsFavorite || emily.FavoriteSynced {
		t.Errorf("expected the queued local favorite to win over the remote value, got %+v", emily)
	}

	kang, err := f.store.Restaurants.Get(ctx, int64(3))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if kang.CuisineType != "Korean" {
		t.Errorf("expected remote values to overwrite cached copies, got %q", kang.CuisineType)
	}
}

func reviewRequestBody(t *testing.T, f *fixture) map[string]any {
	t.Helper()
	for _, r := range f.remote.Requests() {
		if r.Method == http.MethodPost {
			var body map[string]any
			if err := json.Unmarshal(r.Body, &body); err != nil {
				t.Fatalf("decode POST body: %v", err)
			}
			return body
		}
	}
	t.Fatal("no POST request recorded")
	return nil
}
