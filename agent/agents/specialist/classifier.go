package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
)

// guardrailClassifier asks a chat model for a JSON verdict. Normalization and
// contract checks are left to guardrail.Pipeline.
type guardrailClassifier struct {
	client      *openaisdk.Client
	model       string
	temperature float64
	prompt      string
}

var _ guardrailx.Classifier = (*guardrailClassifier)(nil)

func newGuardrailClassifier(client *openaisdk.Client, model string, temperature float32, prompt string) (*guardrailClassifier, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: guardrail model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: guardrail prompt", contractx.ErrPromptMissing)
	}
	return &guardrailClassifier{
		client:      client,
		model:       strings.TrimSpace(model),
		temperature: float64(temperature),
		prompt:      prompt,
	}, nil
}

func (c *guardrailClassifier) Classify(ctx context.Context, message string) (guardrailx.Verdict, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(c.prompt),
			openaisdk.UserMessage(message),
		},
		Temperature: openaisdk.Float(c.temperature),
	})
	if err != nil {
		return guardrailx.Verdict{}, fmt.Errorf("%w: guardrail completion: %v", contractx.ErrModelInvoke, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return guardrailx.Verdict{}, fmt.Errorf("%w: guardrail returned no choices", contractx.ErrSchemaViolation)
	}
	return parseVerdict(resp.Choices[0].Message.Content)
}

// parseVerdict reads the first JSON object in content; models often wrap it
// in prose or code fences.
func parseVerdict(content string) (guardrailx.Verdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return guardrailx.Verdict{}, fmt.Errorf("%w: guardrail reply has no JSON object", contractx.ErrSchemaViolation)
	}

	var v guardrailx.Verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return guardrailx.Verdict{}, fmt.Errorf("%w: decode guardrail verdict: %v", contractx.ErrSchemaViolation, err)
	}
	return v, nil
}
