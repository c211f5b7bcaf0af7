package cache

import (
	"context"
	"errors"
	"testing"
)

type stubCacheService struct {
	result any
	err    error
	keys   []string
}

func (s *stubCacheService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	s.keys = append(s.keys, key)
	return s.result, s.err
}

func (s *stubCacheService) DeleteByPrefix(ctx context.Context, prefix string) error {
	return nil
}

func TestGetOrFetch(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		stub    *stubCacheService
		want    []int
		wantErr error
	}{
		{name: "typed value", stub: &stubCacheService{result: []int{1, 2}}, want: []int{1, 2}},
		{name: "nil result", stub: &stubCacheService{result: nil}, want: nil},
		{name: "service error", stub: &stubCacheService{err: boom}, wantErr: boom},
		{name: "wrong type", stub: &stubCacheService{result: "nope"}, wantErr: ErrInvalidResultType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetOrFetch(context.Background(), tt.stub, "restaurants", func(ctx context.Context) ([]int, error) {
				return nil, nil
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if got != nil {
					t.Errorf("expected zero value on error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if len(tt.stub.keys) != 1 || tt.stub.keys[0] != "restaurants" {
				t.Errorf("expected key to be passed through, got %v", tt.stub.keys)
			}
		})
	}
}

func TestConfig_DefaultIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected zero config to be invalid")
	}
}

func TestNewCacheService(t *testing.T) {
	svc, err := NewCacheService(DefaultConfig())
	if err != nil {
		t.Fatalf("NewCacheService() error = %v", err)
	}

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "Manhattan", nil
	}
	for i := 0; i < 2; i++ {
		v, err := GetOrFetch(context.Background(), svc, "neighborhoods", fetch)
		if err != nil || v != "Manhattan" {
			t.Fatalf("GetOrFetch() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}
}
