package orchestratornode

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/router"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

type GraphInput struct {
	SessionID string
	Text      string
	UserInfo  statex.UserInfo
}

type GraphOutput struct {
	Reply      string
	Blocked    bool
	LastAgent  contractx.AgentType
	Conflicts  []statex.Conflict
	Snapshot   statex.Snapshot
	Verdict    guardrailx.Verdict
	Persisted  bool
	HistoryLen int
}

// GraphState is threaded through every node of one turn. Record is the
// loaded copy and stays untouched; Working collects the turn's changes and
// is the only thing that gets saved.
type GraphState struct {
	SessionID string
	Text      string
	UserInfo  statex.UserInfo
	Now       time.Time
	Today     civil.Date

	Record  *statex.SessionRecord
	Working *statex.SessionRecord
	IsNew   bool

	Verdict  guardrailx.Verdict
	Intent   router.Intent
	Decision router.Decision

	Message   string
	Conflicts []statex.Conflict
	Applied   int
}

// ValidateRequest trims the input and fixes the turn's clock. today is taken
// in loc so date checks follow the configured timezone.
func ValidateRequest(in GraphInput, nowFn func() time.Time, loc *time.Location) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, statex.ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, contractx.ErrInvalidMessage
	}
	if nowFn == nil {
		return nil, fmt.Errorf("%w: clock is nil", contractx.ErrValidation)
	}
	if loc == nil {
		loc = time.UTC
	}

	now := nowFn()
	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		UserInfo:  in.UserInfo,
		Now:       now.UTC(),
		Today:     civil.DateOf(now.In(loc)),
	}, nil
}
