package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrStateNotFound    = errors.New("session record not found")
	ErrNilSessionState  = errors.New("session record is nil")
	ErrInvalidSession   = errors.New("session id is empty")
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Store is the persistence contract used by the orchestrator.
// Load returns ErrStateNotFound for unknown sessions; Save is an upsert keyed by
// session id; Delete is idempotent.
type Store interface {
	Load(ctx context.Context, sessionID string) (*SessionRecord, error)
	Save(ctx context.Context, rec *SessionRecord) error
	Delete(ctx context.Context, sessionID string) error
}

// prepareForSave normalizes a record right before it is encoded by a store.
func prepareForSave(rec *SessionRecord) error {
	if rec == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(rec.SessionID) == "" {
		return ErrInvalidSession
	}
	if rec.Version <= 0 {
		rec.Version = 1
	}
	if rec.Itinerary.Days == nil {
		rec.Itinerary.Days = []Day{}
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	} else {
		rec.UpdatedAt = rec.UpdatedAt.UTC()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	return rec.Validate()
}

func encodeRecord(rec *SessionRecord) ([]byte, error) {
	if err := prepareForSave(rec); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal session record: %w", err)
	}
	return payload, nil
}

func decodeRecord(payload []byte) (*SessionRecord, error) {
	var rec SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	if rec.Itinerary.Days == nil {
		rec.Itinerary.Days = []Day{}
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session record loaded from store: %w", err)
	}
	return &rec, nil
}
