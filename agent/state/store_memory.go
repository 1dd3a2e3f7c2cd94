package state

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const memoryCleanupInterval = 10 * time.Minute

// MemoryStore keeps encoded records in process memory. Records are stored as
// JSON so Load always returns a private copy.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryStore returns a store whose entries expire after ttl (<= 0 never expires).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	expiration := gocache.NoExpiration
	if ttl > 0 {
		expiration = ttl
	}
	return &MemoryStore{
		cache: gocache.New(expiration, memoryCleanupInterval),
		ttl:   expiration,
	}
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	raw, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, ErrStateNotFound
	}
	payload, ok := raw.([]byte)
	if !ok {
		return nil, ErrRecordCorrupt
	}
	return decodeRecord(payload)
}

func (s *MemoryStore) Save(ctx context.Context, rec *SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	s.cache.Set(rec.SessionID, payload, s.ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}
	s.cache.Delete(sessionID)
	return nil
}
