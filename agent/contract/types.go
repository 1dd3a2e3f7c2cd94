package contract

import (
	"cloud.google.com/go/civil"

	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

type AgentType string

const (
	AgentTypeGuardrail   AgentType = "guardrail"
	AgentTypeIntent      AgentType = "intent"
	AgentTypeTripPlanner AgentType = "trip_planner"
	AgentTypeFlight      AgentType = "flight"
	AgentTypeDestination AgentType = "destination"
	AgentTypeBooking     AgentType = "booking"
)

// SpecialistAgents lists the agents a turn can be routed to.
var SpecialistAgents = []AgentType{
	AgentTypeTripPlanner,
	AgentTypeFlight,
	AgentTypeDestination,
	AgentTypeBooking,
}

func (a AgentType) IsSpecialist() bool {
	for _, s := range SpecialistAgents {
		if s == a {
			return true
		}
	}
	return false
}

type SpecialistRequest struct {
	UserMessage   string             `json:"user_message"`
	Specialist    AgentType          `json:"specialist"`
	Summary       statex.TripSummary `json:"summary"`
	Itinerary     statex.Itinerary   `json:"itinerary"`
	History       []statex.Message   `json:"history,omitempty"`
	Missing       []string           `json:"missing,omitempty"`
	Guidance      string             `json:"guidance,omitempty"`
	LastConflicts []statex.Conflict  `json:"last_conflicts,omitempty"`
	Today         civil.Date         `json:"today"`
	ToolResults   []ToolResult       `json:"tool_results,omitempty"`
}

// SpecialistResponse splits tool calls into context patches (Updates) and
// action tools whose results are fed back to the specialist (ToolRequests).
type SpecialistResponse struct {
	Message      string        `json:"message"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
	Updates      []ToolRequest `json:"updates,omitempty"`
}

// IntentRequest is what the intent classifier sees: the message plus enough
// context to tell a follow-up from a new topic.
type IntentRequest struct {
	UserMessage string             `json:"user_message"`
	LastAgent   AgentType          `json:"last_agent,omitempty"`
	Summary     statex.TripSummary `json:"summary"`
	History     []statex.Message   `json:"history,omitempty"`
}

// IntentResponse names the specialist the message is about. An empty
// Specialist means the message carries no clear topic.
type IntentResponse struct {
	Specialist AgentType `json:"specialist"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason,omitempty"`
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
