package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

type requestLog struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (l *requestLog) at(i int) recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[i]
}

func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.mu.Lock()
		log.requests = append(log.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		log.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func TestNew_RejectsInvalidBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "http", baseURL: "http://localhost:1337"},
		{name: "https with path", baseURL: "https://api.example.com/v1/"},
		{name: "empty uses default", baseURL: ""},
		{name: "no scheme", baseURL: "localhost:1337", wantErr: true},
		{name: "ftp", baseURL: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestClient_FetchJSON(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `[{"id":1,"name":"Katz's"}]`)

	client, err := New(srv.URL, WithHeader("X-Client", "restaurant-sync"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var out []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	err = client.FetchJSON(context.Background(), "restaurants/", url.Values{"cuisine_type": {"Pizza"}}, &out)
	if err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}

	if len(out) != 1 || out[0].Name != "Katz's" {
		t.Errorf("unexpected decoded body: %+v", out)
	}

	got := requests.at(0)
	if got.Method != http.MethodGet || got.Path != "/restaurants/" {
		t.Errorf("unexpected request %s %s", got.Method, got.Path)
	}
	if got.Query.Get("cuisine_type") != "Pizza" {
		t.Errorf("expected query to be forwarded, got %v", got.Query)
	}
	if got.Header.Get("X-Client") != "restaurant-sync" {
		t.Errorf("expected custom header, got %v", got.Header)
	}
}

func TestClient_ResolvesAgainstBasePath(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `{}`)

	client, err := New(srv.URL + "/api")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := client.FetchJSON(context.Background(), "/restaurants/3", nil, nil); err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}

	if path := requests.at(0).Path; path != "/api/restaurants/3" {
		t.Errorf("expected /api/restaurants/3, got %s", path)
	}
}

func TestClient_PostJSON(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusCreated, `{"id":31,"restaurant_id":3}`)

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	body := map[string]any{"restaurant_id": 3, "name": "Ada", "rating": 4, "comments": "ok"}
	var out struct {
		ID int64 `json:"id"`
	}
	ctx := WithIdempotencyKey(context.Background(), "k-1")
	if err := client.PostJSON(ctx, "reviews/", body, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}

	if out.ID != 31 {
		t.Errorf("expected id 31, got %d", out.ID)
	}
	got := requests.at(0)
	if got.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", got.Method)
	}
	if got.Header.Get("Idempotency-Key") != "k-1" {
		t.Errorf("expected idempotency key header, got %q", got.Header.Get("Idempotency-Key"))
	}
	if got.Header.Get("Content-Type") == "" {
		t.Error("expected content type on POST")
	}
	if got.Body == "" {
		t.Error("expected a request body")
	}
}

func TestClient_PutResource(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `{"id":3,"is_favorite":"true"}`)

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := client.PutResource(context.Background(), "restaurants/3/", url.Values{"is_favorite": {"true"}}); err != nil {
		t.Fatalf("PutResource() error = %v", err)
	}

	got := requests.at(0)
	if got.Method != http.MethodPut || got.Query.Get("is_favorite") != "true" {
		t.Errorf("unexpected request %s %v", got.Method, got.Query)
	}
	if got.Body != "" {
		t.Errorf("expected empty body, got %q", got.Body)
	}
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "bad request", status: http.StatusBadRequest},
		{name: "not found", status: http.StatusNotFound},
		{name: "too many requests", status: http.StatusTooManyRequests, retryable: true},
		{name: "internal", status: http.StatusInternalServerError, retryable: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newRecordingServer(t, tt.status, `{"error":"nope"}`)
			client, err := New(srv.URL)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			err = client.FetchJSON(context.Background(), "restaurants/", nil, nil)

			var remoteErr *RemoteError
			if !errors.As(err, &remoteErr) {
				t.Fatalf("expected *RemoteError, got %T %v", err, err)
			}
			if remoteErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, remoteErr.Status)
			}
			if string(remoteErr.Body) != `{"error":"nope"}` {
				t.Errorf("expected body to be kept, got %q", remoteErr.Body)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	client, err := New(base, WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = client.FetchJSON(context.Background(), "restaurants/", nil, nil)
	if !IsNetworkError(err) {
		t.Fatalf("expected network error, got %T %v", err, err)
	}
	if !IsRetryable(err) {
		t.Error("expected network errors to be retryable")
	}
}

func TestClient_DecodeError(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusOK, `not json`)
	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var out []map[string]any
	err = client.FetchJSON(context.Background(), "restaurants/", nil, &out)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if IsNetworkError(err) || IsRetryable(err) {
		t.Errorf("decode errors should not be treated as transport failures: %v", err)
	}
}

func TestIsRetryable_Nil(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
}
