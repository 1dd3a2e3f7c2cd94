package orchestratornode

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/merge"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/router"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

type loopSpecialist struct {
	resp  contractx.SpecialistResponse
	calls int
}

func (l *loopSpecialist) Run(context.Context, contractx.SpecialistRequest) (contractx.SpecialistResponse, error) {
	l.calls++
	return l.resp, nil
}

type oneRegistry struct{ spec contractx.Specialist }

func (r oneRegistry) Classifier() guardrailx.Classifier { return nil }

func (r oneRegistry) Intent() contractx.IntentClassifier { return nil }

func (r oneRegistry) Specialist(contractx.AgentType) (contractx.Specialist, bool) {
	return r.spec, r.spec != nil
}

type noTools struct{}

func (noTools) Execute(_ context.Context, _ contractx.AgentType, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	out := make([]contractx.ToolResult, len(reqs))
	for i, r := range reqs {
		out[i] = contractx.ToolResult{Tool: r.Tool, Result: "ok"}
	}
	return out, nil
}

func turnState() *GraphState {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	rec := statex.NewSessionRecord("s1", statex.UserInfo{}, now)
	return &GraphState{
		SessionID: "s1",
		Text:      "two of us",
		Now:       now,
		Today:     civil.DateOf(now),
		Record:    rec,
		Working:   rec.Clone(),
		Decision:  router.Decision{Specialist: contractx.AgentTypeTripPlanner},
	}
}

func TestDispatchFallbackReplyAfterSilentUpdates(t *testing.T) {
	t.Parallel()

	spec := &loopSpecialist{resp: contractx.SpecialistResponse{
		Updates: []contractx.ToolRequest{{Tool: merge.ToolUpdateSummary, Args: map[string]any{"pax": float64(2)}}},
	}}
	in := turnState()

	out, err := DispatchSpecialist(context.Background(), in, DispatchDeps{
		Registry: oneRegistry{spec: spec}, Tools: noTools{}, Engine: merge.NewEngine(), MaxRounds: 2,
	})
	if err != nil {
		t.Fatalf("DispatchSpecialist() error = %v", err)
	}
	if out.Message != FallbackReply || spec.calls != 2 {
		t.Fatalf("message=%q calls=%d", out.Message, spec.calls)
	}
	if out.Working.Summary.PartySize == nil || *out.Working.Summary.PartySize != 2 {
		t.Fatal("update not merged into working record")
	}
	if out.Record.Summary.PartySize != nil {
		t.Fatal("loaded record must not be mutated")
	}
}

func TestDispatchStopsAtRoundLimit(t *testing.T) {
	t.Parallel()

	spec := &loopSpecialist{resp: contractx.SpecialistResponse{
		ToolRequests: []contractx.ToolRequest{{Tool: "validate_trip_date"}},
	}}
	_, err := DispatchSpecialist(context.Background(), turnState(), DispatchDeps{
		Registry: oneRegistry{spec: spec}, Tools: noTools{}, Engine: merge.NewEngine(), MaxRounds: 3,
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) || spec.calls != 3 {
		t.Fatalf("err=%v calls=%d", err, spec.calls)
	}
}

func TestDispatchUnknownSpecialist(t *testing.T) {
	t.Parallel()

	_, err := DispatchSpecialist(context.Background(), turnState(), DispatchDeps{
		Registry: oneRegistry{}, Tools: noTools{}, Engine: merge.NewEngine(),
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateRequestUsesLocationForToday(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*3600)
	now := func() time.Time { return time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC) }

	st, err := ValidateRequest(GraphInput{SessionID: " s1 ", Text: " hi "}, now, loc)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.Today != (civil.Date{Year: 2026, Month: time.January, Day: 16}) {
		t.Fatalf("today = %s, want 2026-01-16", st.Today)
	}
	if st.SessionID != "s1" || st.Text != "hi" {
		t.Fatalf("input not trimmed: %#v", st)
	}
	if _, err := ValidateRequest(GraphInput{SessionID: "s1"}, now, loc); !errors.Is(err, contractx.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestApplyTurnRecordsExchange(t *testing.T) {
	t.Parallel()

	in := turnState()
	in.Message = "Noted, two travellers."
	in.Conflicts = []statex.Conflict{{Field: "outbound_date", Code: merge.CodeDateInPast}}

	out, err := ApplyTurn(in, 0)
	if err != nil {
		t.Fatalf("ApplyTurn() error = %v", err)
	}
	w := out.Working
	if w.HistoryLength != 2 || w.History[1].Agent != string(contractx.AgentTypeTripPlanner) {
		t.Fatalf("unexpected history: %#v", w.History)
	}
	if w.LastAgent != string(contractx.AgentTypeTripPlanner) || len(w.LastConflicts) != 1 || w.Version != 1 {
		t.Fatalf("unexpected record metadata: %#v", w)
	}
}
