package state

import (
	"context"
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestNewPostgresStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(context.Background(), PostgresConfig{DSN: "  "}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestSessionRowRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	rec := NewSessionRecord("sess-pg", UserInfo{UserID: "u1", Locale: "en"}, now)
	city := "Rome"
	out := civil.Date{Year: 2026, Month: time.May, Day: 10}
	days := 5
	rec.Summary.Destination.City = &city
	rec.Summary.OutboundDate = &out
	rec.Summary.DurationDays = &days
	rec.Itinerary.Recompute(rec.Summary)
	rec.Version = 4
	if err := rec.AppendHistory(Message{Role: RoleUser, Content: "Rome in May", At: now}, 0); err != nil {
		t.Fatalf("AppendHistory returned error: %v", err)
	}

	row := newSessionRow(rec)
	if row.LastConflicts == nil {
		t.Fatalf("expected non-nil conflicts slice for jsonb column")
	}

	got := row.toRecord()
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("row round trip mismatch\n got: %+v\nwant: %+v", got, rec)
	}
}

func TestSessionRowDoesNotAliasRecord(t *testing.T) {
	t.Parallel()

	rec := NewSessionRecord("sess-alias", UserInfo{}, time.Now())
	pax := 2
	rec.Summary.PartySize = &pax

	row := newSessionRow(rec)
	*row.Summary.PartySize = 9

	if *rec.Summary.PartySize != 2 {
		t.Fatalf("row shares memory with record")
	}
}
