package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SessionRecord is the persistent source-of-truth for one conversation.
// - Summary: canonical trip facts, merged sparsely turn by turn
// - Itinerary: day-by-day plan, replaced wholesale by the merge engine
// - Conversation metadata: bounded history, last active specialist, last conflicts
type SessionRecord struct {
	// Identity
	SessionID string   `json:"session_id"`
	UserInfo  UserInfo `json:"user_info"`

	// Trip context
	Summary   TripSummary `json:"summary"`
	Itinerary Itinerary   `json:"itinerary"`

	// DerivedDate names the date field the triad solver filled in
	// (outbound_date, return_date or duration_days). Empty when every
	// stored date value was given by the user.
	DerivedDate string `json:"derived_date,omitempty"`

	// Conversation state
	History       []Message  `json:"history,omitempty"`
	HistoryLength int        `json:"history_length"`
	LastAgent     string     `json:"last_agent,omitempty"`
	LastConflicts []Conflict `json:"last_conflicts,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserInfo struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Locale string `json:"locale,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Agent   string    `json:"agent,omitempty"`
	At      time.Time `json:"at"`
}

// Conflict describes the part of a patch that was dropped during a merge.
type Conflict struct {
	Field     string `json:"field"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Suggested string `json:"suggested,omitempty"`
}

var (
	ErrNilRecord      = errors.New("session record is nil")
	ErrRecordCorrupt  = errors.New("session record corrupt")
	ErrHistoryInvalid = errors.New("history entry is invalid")
)

func NewSessionRecord(sessionID string, user UserInfo, now time.Time) *SessionRecord {
	return &SessionRecord{
		SessionID: sessionID,
		UserInfo:  user,
		Itinerary: NewItinerary(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (r *SessionRecord) Touch(now time.Time) {
	r.UpdatedAt = now.UTC()
}

// MergeUserInfo copies the non-empty fields of u onto the record.
func (r *SessionRecord) MergeUserInfo(u UserInfo) {
	if v := strings.TrimSpace(u.UserID); v != "" {
		r.UserInfo.UserID = v
	}
	if v := strings.TrimSpace(u.Name); v != "" {
		r.UserInfo.Name = v
	}
	if v := strings.TrimSpace(u.Email); v != "" {
		r.UserInfo.Email = v
	}
	if v := strings.TrimSpace(u.Locale); v != "" {
		r.UserInfo.Locale = v
	}
}

// AppendHistory records a message and keeps at most limit entries (limit <= 0 keeps all).
// HistoryLength counts every message ever appended, not just the retained window.
func (r *SessionRecord) AppendHistory(msg Message, limit int) error {
	if r == nil {
		return ErrNilRecord
	}
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return fmt.Errorf("%w: role=%q", ErrHistoryInvalid, msg.Role)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("%w: empty content", ErrHistoryInvalid)
	}
	msg.At = msg.At.UTC()
	r.History = append(r.History, msg)
	r.HistoryLength++
	if limit > 0 && len(r.History) > limit {
		r.History = append([]Message(nil), r.History[len(r.History)-limit:]...)
	}
	return nil
}

// Validate checks the standing invariants of a record read from, or about to be
// written to, a store.
func (r *SessionRecord) Validate() error {
	if r == nil {
		return ErrNilRecord
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("%w: session id is empty", ErrRecordCorrupt)
	}
	if err := r.Summary.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if err := r.validateDerivedDate(); err != nil {
		return fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if r.HistoryLength < len(r.History) {
		return fmt.Errorf("%w: history_length=%d < retained=%d", ErrRecordCorrupt, r.HistoryLength, len(r.History))
	}
	want := r.Itinerary.Derive(r.Summary)
	if r.Itinerary.Computed.MatchesDuration != want.MatchesDuration {
		return fmt.Errorf("%w: computed.matches_duration is stale", ErrRecordCorrupt)
	}
	return nil
}

func (r *SessionRecord) validateDerivedDate() error {
	var set bool
	switch r.DerivedDate {
	case "":
		return nil
	case "outbound_date":
		set = r.Summary.OutboundDate != nil
	case "return_date":
		set = r.Summary.ReturnDate != nil
	case "duration_days":
		set = r.Summary.DurationDays != nil
	default:
		return fmt.Errorf("derived_date %q is not a date field", r.DerivedDate)
	}
	if !set {
		return fmt.Errorf("derived_date %q names an empty field", r.DerivedDate)
	}
	return nil
}

// Clone returns a deep copy so a turn can work on a private copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Summary = r.Summary.Clone()
	out.Itinerary = r.Itinerary.Clone()
	out.History = cloneSlice(r.History)
	out.LastConflicts = cloneSlice(r.LastConflicts)
	return &out
}

// Snapshot is the context payload returned to callers after every turn.
type Snapshot struct {
	Summary   TripSummary `json:"summary"`
	Itinerary Itinerary   `json:"itinerary"`
}

func (r *SessionRecord) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{Itinerary: NewItinerary()}
	}
	c := r.Clone()
	return Snapshot{Summary: c.Summary, Itinerary: c.Itinerary}
}

// cloneSlice copies s and keeps the nil/empty distinction.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
