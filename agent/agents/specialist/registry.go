package specialist

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
	llmx "github.com/tanpawarit/Chative-Trip-Planner/agent/llm"
	promptx "github.com/tanpawarit/Chative-Trip-Planner/agent/prompt"
	openrouterx "github.com/tanpawarit/Chative-Trip-Planner/pkg/openrouter"
)

type registryImpl struct {
	classifier  guardrailx.Classifier
	intent      contractx.IntentClassifier
	specialists map[contractx.AgentType]contractx.Specialist
}

func (r *registryImpl) Classifier() guardrailx.Classifier {
	return r.classifier
}

func (r *registryImpl) Intent() contractx.IntentClassifier {
	return r.intent
}

func (r *registryImpl) Specialist(agentType contractx.AgentType) (contractx.Specialist, bool) {
	s, ok := r.specialists[agentType]
	return s, ok
}

func NewRegistry(ctx context.Context, cfg llmx.Config) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	modelAgents := append([]contractx.AgentType{contractx.AgentTypeIntent}, contractx.SpecialistAgents...)
	models := make(map[contractx.AgentType]einomodel.ToolCallingChatModel, len(modelAgents))
	for _, agentType := range modelAgents {
		modelCfg := cfg.OpenRouterFor(agentType)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agentType, err)
		}
		models[agentType] = m
	}

	guardCfg := cfg.OpenRouterFor(contractx.AgentTypeGuardrail)
	client := openrouterx.NewClient(guardCfg)
	if client == nil {
		return nil, fmt.Errorf("%w: openrouter client for guardrail", contractx.ErrValidation)
	}

	reg, err := newRegistry(ctx, promptx.LoadPromptSet(), models, client, guardCfg)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func newRegistry(
	ctx context.Context,
	prompts promptx.PromptSet,
	models map[contractx.AgentType]einomodel.ToolCallingChatModel,
	client *openaisdk.Client,
	guardCfg openrouterx.Config,
) (*registryImpl, error) {
	systemPrompts := map[contractx.AgentType]string{
		contractx.AgentTypeTripPlanner: prompts.TripPlanner,
		contractx.AgentTypeFlight:      prompts.Flight,
		contractx.AgentTypeDestination: prompts.Destination,
		contractx.AgentTypeBooking:     prompts.Booking,
	}

	specialists := make(map[contractx.AgentType]contractx.Specialist, len(models))
	for _, agentType := range contractx.SpecialistAgents {
		m, ok := models[agentType]
		if !ok || m == nil {
			return nil, fmt.Errorf("%w: no model for agent=%s", contractx.ErrValidation, agentType)
		}
		spec, err := newSpecialist(ctx, agentType, m, systemPrompts[agentType])
		if err != nil {
			return nil, err
		}
		specialists[agentType] = spec
	}

	intentModel, ok := models[contractx.AgentTypeIntent]
	if !ok || intentModel == nil {
		return nil, fmt.Errorf("%w: no model for agent=%s", contractx.ErrValidation, contractx.AgentTypeIntent)
	}
	intent, err := newIntentClassifier(ctx, intentModel, prompts.Intent)
	if err != nil {
		return nil, err
	}

	classifier, err := newGuardrailClassifier(client, guardCfg.Model, guardCfg.Temperature, prompts.Guardrail)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		classifier:  classifier,
		intent:      intent,
		specialists: specialists,
	}, nil
}
