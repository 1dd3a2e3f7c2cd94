package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/triad"
)

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

func DefaultExecutor(agentType contractx.AgentType) Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("tool=%s is unavailable for agent=%s", tool, agentType),
		}, nil
	}
}

type FlightQuery struct {
	Origin       string      `json:"origin"`
	Destination  string      `json:"destination"`
	OutboundDate civil.Date  `json:"outbound_date"`
	ReturnDate   *civil.Date `json:"return_date,omitempty"`
	Pax          int         `json:"pax"`
}

type FlightOffer struct {
	Carrier      string    `json:"carrier"`
	FlightNumber string    `json:"flight_number"`
	DepartAt     time.Time `json:"depart_at"`
	ArriveAt     time.Time `json:"arrive_at"`
	Stops        int       `json:"stops"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
}

// FlightSearcher is the external flight inventory.
type FlightSearcher interface {
	SearchFlights(ctx context.Context, q FlightQuery) ([]FlightOffer, error)
}

type Option func(*Gateway)

func WithFlightSearcher(s FlightSearcher) Option {
	return func(g *Gateway) { g.flights = s }
}

func WithHorizonDays(days int) Option {
	return func(g *Gateway) {
		if days > 0 {
			g.horizonDays = days
		}
	}
}

func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
		if loc != nil {
			g.loc = loc
		}
	}
}

// Gateway executes action tools. Context patches never reach it.
type Gateway struct {
	flights     FlightSearcher
	horizonDays int
	now         func() time.Time
	loc         *time.Location
}

var _ contractx.ToolGateway = (*Gateway)(nil)

func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		horizonDays: triad.DefaultHorizonDays,
		now:         time.Now,
		loc:         time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Gateway) Execute(ctx context.Context, agentType contractx.AgentType, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	exec := g.executorFor(agentType)
	out := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := exec(ctx, req.Tool, req.Args)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (g *Gateway) executorFor(agentType contractx.AgentType) Executor {
	fallback := DefaultExecutor(agentType)
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		if !Allowed(agentType, tool) || IsStateTool(tool) {
			return fallback(ctx, tool, args)
		}
		switch tool {
		case ToolValidateTripDate:
			return g.validateTripDate(tool, args), nil
		case ToolFlightSearch:
			if g.flights == nil {
				return fallback(ctx, tool, args)
			}
			return g.searchFlights(ctx, tool, args), nil
		default:
			return fallback(ctx, tool, args)
		}
	}
}

type ValidateTripDateOutput struct {
	OutboundDate *civil.Date `json:"outbound_date"`
	ReturnDate   *civil.Date `json:"return_date"`
	DurationDays *int        `json:"duration_days"`
	Solved       bool        `json:"solved"`
	Valid        bool        `json:"valid"`
	Problem      string      `json:"problem,omitempty"`
	Suggested    string      `json:"suggested,omitempty"`
}

func (g *Gateway) validateTripDate(tool string, args map[string]any) contractx.ToolResult {
	var in triad.Input
	var err error
	if in.Outbound, err = argDate(args, "outbound_date"); err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}
	if in.Return, err = argDate(args, "return_date"); err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}
	if in.DurationDays, err = argInt(args, "duration_days"); err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}

	today := civil.DateOf(g.now().In(g.loc))
	res, err := triad.Resolve(in, triad.Options{Today: today, HorizonDays: g.horizonDays})
	if err != nil {
		out := ValidateTripDateOutput{
			OutboundDate: in.Outbound,
			ReturnDate:   in.Return,
			DurationDays: in.DurationDays,
			Problem:      err.Error(),
		}
		var past *triad.DateInPastError
		if errors.As(err, &past) {
			out.Suggested = past.Suggested.String()
		}
		return contractx.ToolResult{Tool: tool, Result: out}
	}
	return contractx.ToolResult{Tool: tool, Result: ValidateTripDateOutput{
		OutboundDate: res.Outbound,
		ReturnDate:   res.Return,
		DurationDays: res.DurationDays,
		Solved:       res.Solved,
		Valid:        true,
	}}
}

func (g *Gateway) searchFlights(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	q := FlightQuery{
		Origin:      strings.ToUpper(argString(args, "origin")),
		Destination: strings.ToUpper(argString(args, "destination")),
		Pax:         1,
	}
	if q.Origin == "" || q.Destination == "" {
		return contractx.ToolResult{Tool: tool, Error: "origin and destination are required"}
	}
	outbound, err := argDate(args, "outbound_date")
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}
	if outbound == nil {
		return contractx.ToolResult{Tool: tool, Error: "outbound_date is required"}
	}
	q.OutboundDate = *outbound
	if q.ReturnDate, err = argDate(args, "return_date"); err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}
	pax, err := argInt(args, "pax")
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}
	if pax != nil && *pax > 0 {
		q.Pax = *pax
	}

	offers, err := g.flights.SearchFlights(ctx, q)
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: fmt.Sprintf("flight search failed: %v", err)}
	}
	return contractx.ToolResult{Tool: tool, Result: offers}
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func argDate(args map[string]any, key string) (*civil.Date, error) {
	raw := argString(args, key)
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD, got %q", key, raw)
	}
	return &d, nil
}

func argInt(args map[string]any, key string) (*int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var n int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%s must be a whole number", key)
		}
		n = int(v)
	case int:
		n = v
	case int64:
		n = int(v)
	default:
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &n, nil
}
