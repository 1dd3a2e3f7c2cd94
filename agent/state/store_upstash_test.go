package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestUpstashStore(t *testing.T, handler http.HandlerFunc, opts ...StoreOption) *UpstashRedisStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]StoreOption{WithHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{
			URL:   server.URL,
			Token: "token",
		},
		opts...,
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store
}

func TestUpstashRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	got, err := store.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "trip:session:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "trip:session:abc")
	}
}

func TestUpstashRedisStoreRedisKeyEmptySession(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	_, err := store.redisKey("   ")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidSession", err)
	}
}

func TestNewUpstashRedisStoreRequiresURLAndToken(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisStore(UpstashRedisConfig{Token: "x"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://example.com"}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestUpstashRedisStoreSaveSendsSetWithTTL(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	var gotAuth string
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}, WithTTL(90*time.Second), WithKeyPrefix("test:"))

	rec := NewSessionRecord("session-1", UserInfo{Name: "Asha"}, time.Now().UTC())
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if gotAuth != "Bearer token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(gotCommand) != 5 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "SET" || gotCommand[1] != "test:session-1" {
		t.Fatalf("unexpected command head: %#v", gotCommand[:2])
	}
	if gotCommand[3] != "EX" || gotCommand[4] != float64(90) {
		t.Fatalf("unexpected ttl args: %#v", gotCommand[3:])
	}
	if rec.Version != 1 {
		t.Fatalf("Save() must default version to 1, got %d", rec.Version)
	}
}

func TestUpstashRedisStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	seed := NewSessionRecord("session-2", UserInfo{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	city := "Rome"
	seed.Summary.Destination.City = &city
	seed.Version = 3
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	})

	rec, err := store.Load(context.Background(), "session-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.SessionID != "session-2" || rec.Version != 3 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Summary.Destination.City == nil || *rec.Summary.Destination.City != "Rome" {
		t.Fatalf("destination not decoded: %+v", rec.Summary.Destination)
	}
	if gotCommand[0] != "GET" || gotCommand[1] != "trip:session:session-2" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashRedisStoreLoadNotFound(t *testing.T) {
	t.Parallel()

	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})

	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}

func TestUpstashRedisStoreHTTPErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := store.Load(context.Background(), "s")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Load() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestUpstashRedisStoreDelete(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":0}`)
	})

	if err := store.Delete(context.Background(), "session-3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if gotCommand[0] != "DEL" || gotCommand[1] != "trip:session:session-3" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}
