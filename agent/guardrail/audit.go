package guardrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type AuditKind string

const (
	AuditKindFailOpen   AuditKind = "fail_open"
	AuditKindFailClosed AuditKind = "fail_closed"
	AuditKindBlocked    AuditKind = "blocked"
)

type AuditEvent struct {
	SessionID string    `json:"session_id"`
	Kind      AuditKind `json:"kind"`
	Verdict   Verdict   `json:"verdict"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent) error
}

// LogSink writes audit events to the global zerolog logger.
type LogSink struct{}

func (LogSink) Record(_ context.Context, ev AuditEvent) error {
	log.Info().
		Str("session_id", ev.SessionID).
		Str("audit_kind", string(ev.Kind)).
		Str("decision", string(ev.Verdict.Decision)).
		Str("category", string(ev.Verdict.Category)).
		Str("error", ev.Error).
		Time("at", ev.At).
		Msg("guardrail_audit")
	return nil
}

// Publisher delivers a message body to a destination, e.g. a QStash topic.
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte) error
}

// PublishSink forwards audit events as JSON to a Publisher.
type PublishSink struct {
	publisher   Publisher
	destination string
}

func NewPublishSink(publisher Publisher, destination string) (*PublishSink, error) {
	destination = strings.TrimSpace(destination)
	if publisher == nil {
		return nil, errors.New("audit publisher is required")
	}
	if destination == "" {
		return nil, errors.New("audit destination is required")
	}
	return &PublishSink{publisher: publisher, destination: destination}, nil
}

func (s *PublishSink) Record(ctx context.Context, ev AuditEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if err := s.publisher.Publish(ctx, s.destination, body); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
