package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/merge"
	nodex "github.com/tanpawarit/Chative-Trip-Planner/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/triad"
)

var (
	ErrInvalidMessage  = contractx.ErrInvalidMessage
	ErrInvalidSession  = statex.ErrInvalidSession
	ErrSessionNotFound = errors.New("session not found")
)

const (
	defaultMaxHistory    = 40
	defaultMaxToolRounds = 3
)

type Config struct {
	MaxHistory      int
	MaxToolRounds   int
	Timezone        string
	DefaultCurrency string
	HorizonDays     int
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithGuardrailOptions configures the guardrail pipeline built around the
// registry's classifier.
func WithGuardrailOptions(opts ...guardrailx.PipelineOption) Option {
	return func(o *Orchestrator) {
		o.guardrailOpts = append(o.guardrailOpts, opts...)
	}
}

type Orchestrator struct {
	store  statex.Store
	models contractx.Registry
	tools  contractx.ToolGateway
	engine *merge.Engine

	guardrail     *guardrailx.Pipeline
	guardrailOpts []guardrailx.PipelineOption
	locks         *sessionLocks

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	maxHistory    int
	maxToolRounds int
	location      *time.Location

	now func() time.Time
}

func New(
	store statex.Store,
	models contractx.Registry,
	tools contractx.ToolGateway,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}

	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", contractx.ErrValidation, tz, err)
		}
		loc = l
	}

	maxHistory := cfg.MaxHistory
	if maxHistory == 0 {
		maxHistory = defaultMaxHistory
	}
	maxToolRounds := cfg.MaxToolRounds
	if maxToolRounds <= 0 {
		maxToolRounds = defaultMaxToolRounds
	}
	horizon := cfg.HorizonDays
	if horizon <= 0 {
		horizon = triad.DefaultHorizonDays
	}

	o := &Orchestrator{
		store:         store,
		models:        models,
		tools:         tools,
		engine:        merge.NewEngine(merge.WithDefaultCurrency(cfg.DefaultCurrency), merge.WithHorizonDays(horizon)),
		locks:         newSessionLocks(),
		maxHistory:    maxHistory,
		maxToolRounds: maxToolRounds,
		location:      loc,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	guardOpts := append([]guardrailx.PipelineOption{guardrailx.WithClock(o.now)}, o.guardrailOpts...)
	o.guardrail = guardrailx.NewPipeline(models.Classifier(), guardOpts...)

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

type SendRequest struct {
	SessionID string          `json:"session_id"`
	Message   string          `json:"message"`
	UserInfo  statex.UserInfo `json:"user_info"`
}

type TurnResult struct {
	Text      string              `json:"text"`
	Context   statex.Snapshot     `json:"context"`
	LastAgent contractx.AgentType `json:"last_agent"`
	Conflicts []statex.Conflict   `json:"conflicts"`
	Blocked   bool                `json:"blocked"`
}

type ContextView struct {
	SessionID     string          `json:"session_id"`
	HistoryLength int             `json:"history_length"`
	Context       statex.Snapshot `json:"context"`
}

// SendMessage runs one turn. Turns of the same session are serialized;
// other sessions proceed in parallel.
func (o *Orchestrator) SendMessage(ctx context.Context, req SendRequest) (TurnResult, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return TurnResult{}, ErrInvalidSession
	}
	if strings.TrimSpace(req.Message) == "" {
		return TurnResult{}, ErrInvalidMessage
	}

	release, err := o.locks.Acquire(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	defer release()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      req.Message,
		UserInfo:  req.UserInfo,
	})
	if err != nil {
		return TurnResult{}, err
	}

	conflicts := out.Conflicts
	if conflicts == nil {
		conflicts = []statex.Conflict{}
	}
	return TurnResult{
		Text:      out.Reply,
		Context:   out.Snapshot,
		LastAgent: out.LastAgent,
		Conflicts: conflicts,
		Blocked:   out.Blocked,
	}, nil
}

// StreamMessage runs the same turn as SendMessage and hands the reply to
// onChunk in order before returning the final result. Nothing is streamed
// for a turn that fails.
func (o *Orchestrator) StreamMessage(ctx context.Context, req SendRequest, onChunk func(string) error) (TurnResult, error) {
	res, err := o.SendMessage(ctx, req)
	if err != nil {
		return TurnResult{}, err
	}
	if onChunk == nil {
		return res, nil
	}
	for _, chunk := range chunkText(res.Text) {
		if err := ctx.Err(); err != nil {
			return TurnResult{}, err
		}
		if err := onChunk(chunk); err != nil {
			return TurnResult{}, err
		}
	}
	return res, nil
}

func (o *Orchestrator) GetContext(ctx context.Context, sessionID string) (ContextView, error) {
	rec, err := o.load(ctx, sessionID)
	if err != nil {
		return ContextView{}, err
	}
	return ContextView{
		SessionID:     rec.SessionID,
		HistoryLength: rec.HistoryLength,
		Context:       rec.Snapshot(),
	}, nil
}

// ResetContext deletes the session. Resetting an unknown session succeeds.
func (o *Orchestrator) ResetContext(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	release, err := o.locks.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	return o.store.Delete(ctx, sessionID)
}

func (o *Orchestrator) load(ctx context.Context, sessionID string) (*statex.SessionRecord, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	rec, err := o.store.Load(ctx, sessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (o *Orchestrator) clock() (time.Time, civil.Date) {
	now := o.now()
	return now.UTC(), civil.DateOf(now.In(o.location))
}
