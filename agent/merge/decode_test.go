package merge

import (
	"errors"
	"testing"
	"time"
)

func TestDecodePatchSummary(t *testing.T) {
	t.Parallel()

	p, err := DecodePatch(ToolUpdateSummary, []byte(`{
		"destination": {"city": "Rome"},
		"outbound_date": "2026-05-10",
		"duration_days": 5,
		"budget": {"amount": 2000},
		"clear": ["origin"]
	}`))
	if err != nil {
		t.Fatalf("DecodePatch returned error: %v", err)
	}
	sp, ok := p.(SummaryPatch)
	if !ok {
		t.Fatalf("expected SummaryPatch, got %T", p)
	}
	if *sp.Destination.City != "Rome" || sp.OutboundDate.Month != time.May || *sp.DurationDays != 5 {
		t.Fatalf("unexpected patch: %+v", sp)
	}
	if *sp.Budget.Amount != 2000 || sp.Budget.Currency != nil {
		t.Fatalf("unexpected budget: %+v", sp.Budget)
	}
}

func TestDecodePatchEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "{}", "null", "  "} {
		p, err := DecodePatch(KindSummary, []byte(raw))
		if err != nil {
			t.Fatalf("DecodePatch(%q) returned error: %v", raw, err)
		}
		if p.Kind() != KindNoOp {
			t.Fatalf("DecodePatch(%q) kind = %s, want noop", raw, p.Kind())
		}
	}
}

func TestDecodePatchRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		tool string
		raw  string
	}{
		{name: "unknown tool", tool: "math.evaluate", raw: `{}`},
		{name: "unknown key", tool: ToolUpdateSummary, raw: `{"hotel": "Hilton"}`},
		{name: "bad date", tool: ToolUpdateSummary, raw: `{"outbound_date": "10/05/2026"}`},
		{name: "impossible date", tool: ToolUpdateSummary, raw: `{"outbound_date": "2026-02-30"}`},
		{name: "string pax", tool: ToolUpdateSummary, raw: `{"pax": "two"}`},
		{name: "unknown clear path", tool: ToolUpdateSummary, raw: `{"clear": ["hotel"]}`},
		{name: "itinerary without days", tool: ToolUpdateItinerary, raw: `{}`},
		{name: "block without place", tool: ToolUpdateItinerary, raw: `{"days": [{"segments": {"morning": [{"place": "", "duration_hours": 1}]}}]}`},
		{name: "trailing data", tool: ToolUpdateSummary, raw: `{"pax": 2} {"pax": 3}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodePatch(tc.tool, []byte(tc.raw)); !errors.Is(err, ErrInvalidPatch) {
				t.Fatalf("expected ErrInvalidPatch, got %v", err)
			}
		})
	}
}

func TestDecodeToolCallItinerary(t *testing.T) {
	t.Parallel()

	p, err := DecodeToolCall(ToolUpdateItinerary, map[string]any{
		"days": []any{
			map[string]any{
				"title": "Ancient Rome",
				"segments": map[string]any{
					"morning": []any{map[string]any{"place": "Colosseum", "duration_hours": 3.0, "descriptor": "guided"}},
				},
			},
		},
		"computed": map[string]any{"matches_duration": true},
	})
	if err != nil {
		t.Fatalf("DecodeToolCall returned error: %v", err)
	}
	ip, ok := p.(ItineraryPatch)
	if !ok {
		t.Fatalf("expected ItineraryPatch, got %T", p)
	}
	if len(ip.Days) != 1 || ip.Days[0].Segments.Morning[0].Place != "Colosseum" {
		t.Fatalf("unexpected days: %+v", ip.Days)
	}
}
