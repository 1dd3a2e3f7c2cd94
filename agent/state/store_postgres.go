package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
	CreateSchema bool          `envconfig:"CREATE_SCHEMA" split_words:"true" default:"true"`
}

// sessionRow is the relational shape of a SessionRecord. Nested values are JSONB.
type sessionRow struct {
	bun.BaseModel `bun:"table:trip_sessions,alias:ts"`

	SessionID     string      `bun:"session_id,pk"`
	UserInfo      UserInfo    `bun:"user_info,type:jsonb,notnull"`
	Summary       TripSummary `bun:"summary,type:jsonb,notnull"`
	Itinerary     Itinerary   `bun:"itinerary,type:jsonb,notnull"`
	DerivedDate   string      `bun:"derived_date,notnull"`
	History       []Message   `bun:"history,type:jsonb,notnull"`
	HistoryLength int         `bun:"history_length,notnull"`
	LastAgent     string      `bun:"last_agent,notnull"`
	LastConflicts []Conflict  `bun:"last_conflicts,type:jsonb,notnull"`
	Version       int64       `bun:"version,notnull"`
	CreatedAt     time.Time   `bun:"created_at,notnull"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull"`
}

// PostgresStore persists SessionRecord in a single upserted row per session.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	store := NewPostgresStoreFromDB(bun.NewDB(sqldb, pgdialect.New()))

	if cfg.CreateSchema {
		if err := store.CreateSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

func NewPostgresStoreFromDB(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*sessionRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: create trip_sessions: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*SessionRecord, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Where("session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select session: %v", ErrStoreUnavailable, err)
	}

	rec := row.toRecord()
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session record loaded from store: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *SessionRecord) error {
	if err := prepareForSave(rec); err != nil {
		return err
	}

	row := newSessionRow(rec)
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("user_info = EXCLUDED.user_info").
		Set("summary = EXCLUDED.summary").
		Set("itinerary = EXCLUDED.itinerary").
		Set("derived_date = EXCLUDED.derived_date").
		Set("history = EXCLUDED.history").
		Set("history_length = EXCLUDED.history_length").
		Set("last_agent = EXCLUDED.last_agent").
		Set("last_conflicts = EXCLUDED.last_conflicts").
		Set("version = EXCLUDED.version").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: upsert session: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}
	_, err := s.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete session: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func newSessionRow(rec *SessionRecord) *sessionRow {
	c := rec.Clone()
	row := &sessionRow{
		SessionID:     c.SessionID,
		UserInfo:      c.UserInfo,
		Summary:       c.Summary,
		Itinerary:     c.Itinerary,
		DerivedDate:   c.DerivedDate,
		History:       c.History,
		HistoryLength: c.HistoryLength,
		LastAgent:     c.LastAgent,
		LastConflicts: c.LastConflicts,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if row.History == nil {
		row.History = []Message{}
	}
	if row.LastConflicts == nil {
		row.LastConflicts = []Conflict{}
	}
	return row
}

func (row *sessionRow) toRecord() *SessionRecord {
	rec := &SessionRecord{
		SessionID:     row.SessionID,
		UserInfo:      row.UserInfo,
		Summary:       row.Summary,
		Itinerary:     row.Itinerary,
		DerivedDate:   row.DerivedDate,
		HistoryLength: row.HistoryLength,
		LastAgent:     row.LastAgent,
		Version:       row.Version,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
	if len(row.History) > 0 {
		rec.History = row.History
	}
	if len(row.LastConflicts) > 0 {
		rec.LastConflicts = row.LastConflicts
	}
	if rec.Itinerary.Days == nil {
		rec.Itinerary.Days = []Day{}
	}
	return rec
}
