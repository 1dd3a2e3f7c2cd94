package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Trip-Planner/agent/export"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/merge"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

type PatchResult struct {
	Context   statex.Snapshot   `json:"context"`
	Conflicts []statex.Conflict `json:"conflicts"`
}

// ApplyPatch merges a user-supplied patch into the session context. It takes
// the same lock and the same merge path as a chat turn. Unknown sessions are
// created so a form can be filled in before the first message.
func (o *Orchestrator) ApplyPatch(ctx context.Context, sessionID, kind string, raw []byte) (PatchResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return PatchResult{}, ErrInvalidSession
	}
	kind = strings.TrimSpace(kind)
	if kind != merge.KindSummary && kind != merge.KindItinerary {
		return PatchResult{}, fmt.Errorf("%w: unknown patch kind %q", merge.ErrInvalidPatch, kind)
	}
	patch, err := merge.DecodePatch(kind, raw)
	if err != nil {
		return PatchResult{}, err
	}

	release, err := o.locks.Acquire(ctx, sessionID)
	if err != nil {
		return PatchResult{}, err
	}
	defer release()

	now, today := o.clock()
	rec, err := o.store.Load(ctx, sessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		rec, err = statex.NewSessionRecord(sessionID, statex.UserInfo{}, now), nil
	}
	if err != nil {
		return PatchResult{}, err
	}

	res, err := o.engine.Merge(rec, patch, today)
	if err != nil {
		return PatchResult{}, err
	}
	next := res.Record
	next.LastConflicts = append([]statex.Conflict(nil), res.Conflicts...)
	next.Version++
	next.Touch(now)

	if err := ctx.Err(); err != nil {
		return PatchResult{}, err
	}
	if err := o.store.Save(ctx, next); err != nil {
		return PatchResult{}, err
	}

	log.Info().
		Str("session_id", sessionID).
		Str("kind", kind).
		Int("conflicts", len(res.Conflicts)).
		Msg("context_patched")

	conflicts := res.Conflicts
	if conflicts == nil {
		conflicts = []statex.Conflict{}
	}
	return PatchResult{Context: next.Snapshot(), Conflicts: conflicts}, nil
}

// ExportItinerary renders the stored itinerary as an iCalendar document.
func (o *Orchestrator) ExportItinerary(ctx context.Context, sessionID string) (string, error) {
	rec, err := o.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	now, _ := o.clock()
	return export.ItineraryCalendar(rec, now)
}

// chunkText splits s into word-sized pieces that concatenate back to s.
func chunkText(s string) []string {
	if s == "" {
		return nil
	}
	var chunks []string
	start := 0
	inSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > start && inSpace && !space {
			chunks = append(chunks, s[start:i])
			start = i
		}
		inSpace = space
	}
	return append(chunks, s[start:])
}
