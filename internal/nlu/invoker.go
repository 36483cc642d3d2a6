package nlu

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"golang.org/x/time/rate"

	"github.com/dtroode/telcoassist-server/internal/logger"
)

// ConverseAPI is the subset of the Bedrock runtime client the invoker uses.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Prompt is a single-turn chat request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int32
	Temperature float32
}

// Invoker sends prompts to a Bedrock model through the Converse API.
type Invoker struct {
	api       ConverseAPI
	modelID   string
	guardrail Guardrail
	caller    caller
}

func NewInvoker(api ConverseAPI, modelID string, guardrail Guardrail, limiter *rate.Limiter, policy RetryPolicy, logger *logger.Logger) *Invoker {
	return &Invoker{
		api:       api,
		modelID:   modelID,
		guardrail: guardrail,
		caller:    caller{limiter: limiter, policy: policy, logger: logger},
	}
}

// Complete returns the trimmed text of the model's reply.
func (i *Invoker) Complete(ctx context.Context, p Prompt) (string, error) {
	input := i.converseInput(p)

	var text string
	err := i.caller.do(ctx, "converse", func(ctx context.Context) error {
		out, err := i.api.Converse(ctx, input)
		if err != nil {
			return err
		}
		text = outputText(out)
		return nil
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("empty model response")
	}

	return text, nil
}

func (i *Invoker) converseInput(p Prompt) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(i.modelID),
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: p.User}},
		}},
	}
	if p.System != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: p.System}}
	}

	var cfg brtypes.InferenceConfiguration
	if p.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(p.MaxTokens)
	}
	if p.Temperature > 0 {
		cfg.Temperature = aws.Float32(p.Temperature)
	}
	if cfg.MaxTokens != nil || cfg.Temperature != nil {
		input.InferenceConfig = &cfg
	}

	if i.guardrail.enabled() {
		input.GuardrailConfig = &brtypes.GuardrailConfiguration{
			GuardrailIdentifier: aws.String(i.guardrail.ID),
			GuardrailVersion:    aws.String(i.guardrail.Version),
		}
	}

	return input
}

func outputText(out *bedrockruntime.ConverseOutput) string {
	if out == nil {
		return ""
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if v, ok := block.(*brtypes.ContentBlockMemberText); ok && v.Value != "" {
			return strings.TrimSpace(v.Value)
		}
	}
	return ""
}
