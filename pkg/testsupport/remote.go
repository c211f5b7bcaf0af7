package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Request is one request received by FakeRemote.
type Request struct {
	Method         string
	Path           string
	Query          string
	Body           []byte
	IdempotencyKey string
}

// FakeRemote is an in-process restaurant review service. It serves the embedded fixtures,
// applies favorite toggles and review submissions to its own state, and records every call.
type FakeRemote struct {
	server *httptest.Server

	mu           sync.Mutex
	restaurants  []map[string]any
	reviews      []map[string]any
	nextReviewID int64
	requests     []Request
	failures     []int
	offline      bool
}

// NewFakeRemote starts a FakeRemote seeded with testdata/restaurants.json and
// testdata/reviews.json. It is closed when the test ends.
func NewFakeRemote(t testing.TB) *FakeRemote {
	t.Helper()

	f := &FakeRemote{nextReviewID: 100}
	FixtureJSON(t, "restaurants.json", &f.restaurants)
	FixtureJSON(t, "reviews.json", &f.reviews)

	f.server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.server.Close)
	return f
}

// URL is the base URL of the service, with a trailing slash.
func (f *FakeRemote) URL() string {
	return f.server.URL + "/"
}

// SetOffline makes the service drop every connection without a response.
func (f *FakeRemote) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// FailNext answers the next n requests with status.
func (f *FakeRemote) FailNext(status, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.failures = append(f.failures, status)
	}
}

// SetNextReviewID sets the id assigned to the next created review.
func (f *FakeRemote) SetNextReviewID(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextReviewID = id
}

// SetRestaurants replaces the restaurant listing.
func (f *FakeRemote) SetRestaurants(restaurants []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restaurants = restaurants
}

// Calls counts the requests received for method and path, ignoring the query and
// surrounding slashes.
func (f *FakeRemote) Calls(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = strings.Trim(path, "/")
	n := 0
	for _, r := range f.requests {
		if r.Method == method && strings.Trim(r.Path, "/") == path {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of requests received.
func (f *FakeRemote) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of the request log.
func (f *FakeRemote) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// Favorite reports the server-side favorite value of a restaurant as sent by the last PUT,
// or the fixture value.
func (f *FakeRemote) Favorite(id int64) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.findRestaurant(id); r != nil {
		return r["is_favorite"]
	}
	return nil
}

// ReviewsFor returns the server-side reviews of a restaurant.
func (f *FakeRemote) ReviewsFor(restaurantID int64) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterReviews(strconv.FormatInt(restaurantID, 10))
}

func (f *FakeRemote) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, Request{
		Method:         r.Method,
		Path:           r.URL.Path,
		Query:          r.URL.RawQuery,
		Body:           body,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	offline := f.offline
	status := 0
	if len(f.failures) > 0 {
		status, f.failures = f.failures[0], f.failures[1:]
	}
	f.mu.Unlock()

	if offline {
		dropConnection(w)
		return
	}
	if status != 0 {
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}

	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case segments[0] == "restaurants" && len(segments) == 1 && r.Method == http.MethodGet:
		f.mu.Lock()
		writeJSON(w, http.StatusOK, f.restaurants)
		f.mu.Unlock()

	case segments[0] == "restaurants" && len(segments) == 2:
		f.serveRestaurant(w, r, segments[1])

	case segments[0] == "reviews" && len(segments) == 1 && r.Method == http.MethodGet:
		f.mu.Lock()
		writeJSON(w, http.StatusOK, f.filterReviews(r.URL.Query().Get("restaurant_id")))
		f.mu.Unlock()

	case segments[0] == "reviews" && len(segments) == 1 && r.Method == http.MethodPost:
		f.createReview(w, body)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (f *FakeRemote) serveRestaurant(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	restaurant := f.findRestaurant(id)
	if restaurant == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, restaurant)
	case http.MethodPut:
		value := r.URL.Query().Get("is_favorite")
		if value != "true" && value != "false" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_favorite must be true or false"})
			return
		}
		restaurant["is_favorite"] = value
		restaurant["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
		writeJSON(w, http.StatusOK, restaurant)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (f *FakeRemote) createReview(w http.ResponseWriter, body []byte) {
	var in map[string]any
	if err := json.Unmarshal(body, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if _, ok := in["restaurant_id"]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "restaurant_id is required"})
		return
	}
	if name, _ := in["name"].(string); name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	f.mu.Lock()
	now := time.Now().UnixMilli()
	in["id"] = f.nextReviewID
	in["createdAt"] = now
	in["updatedAt"] = now
	f.nextReviewID++
	f.reviews = append(f.reviews, in)
	writeJSON(w, http.StatusCreated, in)
	f.mu.Unlock()
}

func (f *FakeRemote) findRestaurant(id int64) map[string]any {
	want := strconv.FormatInt(id, 10)
	for _, r := range f.restaurants {
		if jsonNumberString(r["id"]) == want {
			return r
		}
	}
	return nil
}

func (f *FakeRemote) filterReviews(restaurantID string) []map[string]any {
	out := make([]map[string]any, 0, len(f.reviews))
	for _, review := range f.reviews {
		if restaurantID == "" || jsonNumberString(review["restaurant_id"]) == restaurantID {
			out = append(out, review)
		}
	}
	return out
}

func jsonNumberString(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	case string:
		return n
	}
	return ""
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
