package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Trip-Planner/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	GuardrailModel         string  `envconfig:"GUARDRAIL_MODEL" split_words:"true"`
	IntentModel            string  `envconfig:"INTENT_MODEL" split_words:"true"`
	TripPlannerModel       string  `envconfig:"TRIP_PLANNER_MODEL" split_words:"true"`
	FlightModel            string  `envconfig:"FLIGHT_MODEL" split_words:"true"`
	DestinationModel       string  `envconfig:"DESTINATION_MODEL" split_words:"true"`
	BookingModel           string  `envconfig:"BOOKING_MODEL" split_words:"true"`
	GuardrailTemperature   float32 `envconfig:"GUARDRAIL_TEMPERATURE" split_words:"true" default:"0"`
	IntentTemperature      float32 `envconfig:"INTENT_TEMPERATURE" split_words:"true" default:"0"`
	TripPlannerTemperature float32 `envconfig:"TRIP_PLANNER_TEMPERATURE" split_words:"true" default:"-1"`
	FlightTemperature      float32 `envconfig:"FLIGHT_TEMPERATURE" split_words:"true" default:"-1"`
	DestinationTemperature float32 `envconfig:"DESTINATION_TEMPERATURE" split_words:"true" default:"-1"`
	BookingTemperature     float32 `envconfig:"BOOKING_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings of one agent. Empty model
// overrides and negative temperatures fall back to the defaults.
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, temperature float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if temperature >= 0 {
			temp = temperature
		}
	}

	switch agentType {
	case contractx.AgentTypeGuardrail:
		override(c.GuardrailModel, c.GuardrailTemperature)
	case contractx.AgentTypeIntent:
		override(c.IntentModel, c.IntentTemperature)
	case contractx.AgentTypeTripPlanner:
		override(c.TripPlannerModel, c.TripPlannerTemperature)
	case contractx.AgentTypeFlight:
		override(c.FlightModel, c.FlightTemperature)
	case contractx.AgentTypeDestination:
		override(c.DestinationModel, c.DestinationTemperature)
	case contractx.AgentTypeBooking:
		override(c.BookingModel, c.BookingTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
