package tool

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	mergex "github.com/tanpawarit/Chative-Trip-Planner/agent/merge"
)

const (
	ToolUpdateSummary    = mergex.ToolUpdateSummary
	ToolUpdateItinerary  = mergex.ToolUpdateItinerary
	ToolValidateTripDate = "validate_trip_date"
	ToolFlightSearch     = "flight_search"
)

// IsStateTool reports whether a tool call is a context patch rather than an action.
func IsStateTool(name string) bool {
	return mergex.IsPatchTool(name)
}

// InfosFor returns the tools bound to a specialist's model.
func InfosFor(agentType contractx.AgentType) []*schema.ToolInfo {
	switch agentType {
	case contractx.AgentTypeTripPlanner:
		return []*schema.ToolInfo{updateSummaryInfo(), updateItineraryInfo(), validateTripDateInfo()}
	case contractx.AgentTypeFlight:
		return []*schema.ToolInfo{updateSummaryInfo(), flightSearchInfo(), validateTripDateInfo()}
	case contractx.AgentTypeDestination:
		return []*schema.ToolInfo{updateSummaryInfo()}
	case contractx.AgentTypeBooking:
		return []*schema.ToolInfo{updateSummaryInfo(), validateTripDateInfo()}
	default:
		return nil
	}
}

// Allowed reports whether agentType may call tool.
func Allowed(agentType contractx.AgentType, tool string) bool {
	for _, info := range InfosFor(agentType) {
		if info.Name == tool {
			return true
		}
	}
	return false
}

func locationParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{
		Type: schema.Object,
		Desc: desc,
		SubParams: map[string]*schema.ParameterInfo{
			"city": {Type: schema.String, Desc: "City name"},
			"iata": {Type: schema.String, Desc: "3-letter IATA airport or city code"},
		},
	}
}

func dateParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc + " (YYYY-MM-DD)"}
}

func updateSummaryInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolUpdateSummary,
		Desc: "Record trip facts the user stated. Send only fields that changed. List field paths in clear to forget them.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"origin":        locationParam("Where the trip starts"),
			"destination":   locationParam("Where the trip goes"),
			"outbound_date": dateParam("Departure date"),
			"return_date":   dateParam("Return date"),
			"duration_days": {Type: schema.Integer, Desc: "Trip length in days"},
			"pax":           {Type: schema.Integer, Desc: "Number of travellers"},
			"budget": {
				Type: schema.Object,
				Desc: "Trip budget",
				SubParams: map[string]*schema.ParameterInfo{
					"amount":     {Type: schema.Number, Desc: "Budget amount"},
					"currency":   {Type: schema.String, Desc: "ISO 4217 currency code"},
					"per_person": {Type: schema.Boolean, Desc: "Whether the amount is per traveller"},
				},
			},
			"trip_types": {
				Type:     schema.Array,
				Desc:     "Trip styles such as culture, food, beach",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
			},
			"places_of_interest": {
				Type: schema.Array,
				Desc: "Places the user wants to see",
				ElemInfo: &schema.ParameterInfo{
					Type: schema.Object,
					SubParams: map[string]*schema.ParameterInfo{
						"name":        {Type: schema.String, Required: true},
						"description": {Type: schema.String},
					},
				},
			},
			"suggested_questions": {
				Type:     schema.Array,
				Desc:     "Follow-up questions to offer the user; replaces the previous list",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
			},
			"clear": {
				Type:     schema.Array,
				Desc:     "Field paths to forget, e.g. budget.amount or return_date",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
			},
		}),
	}
}

func updateItineraryInfo() *schema.ToolInfo {
	block := &schema.ParameterInfo{
		Type: schema.Object,
		SubParams: map[string]*schema.ParameterInfo{
			"place":          {Type: schema.String, Required: true},
			"duration_hours": {Type: schema.Number, Required: true},
			"descriptor":     {Type: schema.String},
		},
	}
	blocks := func(desc string) *schema.ParameterInfo {
		return &schema.ParameterInfo{Type: schema.Array, Desc: desc, ElemInfo: block}
	}

	return &schema.ToolInfo{
		Name: ToolUpdateItinerary,
		Desc: "Replace the whole day-by-day itinerary. Always send every day, not only the changed one.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"days": {
				Type:     schema.Array,
				Required: true,
				ElemInfo: &schema.ParameterInfo{
					Type: schema.Object,
					SubParams: map[string]*schema.ParameterInfo{
						"title": {Type: schema.String},
						"segments": {
							Type: schema.Object,
							SubParams: map[string]*schema.ParameterInfo{
								"morning":   blocks("Morning activities"),
								"afternoon": blocks("Afternoon activities"),
								"evening":   blocks("Evening activities"),
							},
						},
					},
				},
			},
		}),
	}
}

func validateTripDateInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolValidateTripDate,
		Desc: "Check candidate trip dates and derive the missing one of departure, return and length.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"outbound_date": dateParam("Departure date"),
			"return_date":   dateParam("Return date"),
			"duration_days": {Type: schema.Integer, Desc: "Trip length in days"},
		}),
	}
}

func flightSearchInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolFlightSearch,
		Desc: "Search flight offers between two airports.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"origin":        {Type: schema.String, Desc: "Origin IATA code", Required: true},
			"destination":   {Type: schema.String, Desc: "Destination IATA code", Required: true},
			"outbound_date": {Type: schema.String, Desc: "Departure date (YYYY-MM-DD)", Required: true},
			"return_date":   dateParam("Return date for round trips"),
			"pax":           {Type: schema.Integer, Desc: "Number of travellers"},
		}),
	}
}
