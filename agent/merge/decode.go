package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodePatch turns a tool payload into a Patch. name is a tool name
// (update_summary, update_itinerary) or a patch kind (summary, itinerary).
// Unknown keys, unknown clear paths and malformed values are rejected with
// ErrInvalidPatch.
func DecodePatch(name string, raw []byte) (Patch, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	switch strings.TrimSpace(name) {
	case ToolUpdateSummary, KindSummary:
		var p SummaryPatch
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		for _, path := range p.Clear {
			if !IsClearablePath(path) {
				return nil, fmt.Errorf("%w: unknown clear path %q", ErrInvalidPatch, path)
			}
		}
		if p.IsEmpty() {
			return NoOp{}, nil
		}
		return p, nil
	case ToolUpdateItinerary, KindItinerary:
		var p ItineraryPatch
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if p.Days == nil {
			return nil, fmt.Errorf("%w: itinerary patch requires days", ErrInvalidPatch)
		}
		if err := ValidateDays(p.Days); err != nil {
			return nil, err
		}
		return p, nil
	case KindNoOp:
		return NoOp{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown patch tool %q", ErrInvalidPatch, name)
	}
}

// DecodeToolCall decodes a tool call whose arguments were already parsed.
func DecodeToolCall(tool string, args map[string]any) (Patch, error) {
	if args == nil {
		return DecodePatch(tool, nil)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: encode arguments: %v", ErrInvalidPatch, err)
	}
	return DecodePatch(tool, raw)
}

// IsPatchTool reports whether tool carries a context patch.
func IsPatchTool(tool string) bool {
	return tool == ToolUpdateSummary || tool == ToolUpdateItinerary
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after patch", ErrInvalidPatch)
	}
	return nil
}
