package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

const classificationSchemaURL = "https://telcoassist.local/schemas/classification.json"

var _ model.Classifier = (*Classifier)(nil)

// Classifier detects intent and slots with a Bedrock model.
type Classifier struct {
	invoker *Invoker
	slang   *SlangNormalizer
	schema  *jsonschema.Schema
	logger  *logger.Logger
}

func NewClassifier(invoker *Invoker, slang *SlangNormalizer, logger *logger.Logger) (*Classifier, error) {
	schema, err := compileClassificationSchema()
	if err != nil {
		return nil, err
	}
	return &Classifier{invoker: invoker, slang: slang, schema: schema, logger: logger}, nil
}

type classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Slots      struct {
		PhoneNumber        *string `json:"phone_number"`
		SecurityPIN        *string `json:"security_pin"`
		LanguagePreference string  `json:"language_preference"`
	} `json:"slots"`
}

// Classify never fails: any error yields an unclear classification.
func (c *Classifier) Classify(ctx context.Context, message string) model.Classification {
	normalized := c.slang.Normalize(ctx, message)

	result, err := c.classify(ctx, message, normalized)
	if err != nil {
		c.logger.Error("Classifier: falling back to unclear intent", "error", err.Error())
		out := model.UnclearClassification()
		out.NormalizedMessage = normalized
		return out
	}

	out := model.Classification{
		Intent:            model.ParseIntent(result.Intent),
		Confidence:        result.Confidence,
		NormalizedMessage: normalized,
		Slots: model.Slots{
			Language: model.ParseLanguage(result.Slots.LanguagePreference),
		},
	}
	if result.Slots.PhoneNumber != nil {
		out.Slots.PhoneNumber = *result.Slots.PhoneNumber
	}
	if result.Slots.SecurityPIN != nil {
		out.Slots.SecurityPIN = *result.Slots.SecurityPIN
	}

	c.logger.Debug("Classifier: intent detected",
		"intent", out.Intent.String(),
		"confidence", out.Confidence)
	return out
}

func (c *Classifier) classify(ctx context.Context, original, normalized string) (classification, error) {
	system, err := render("classify_system.txt", nil)
	if err != nil {
		return classification{}, err
	}
	user, err := render("classify_user.txt", map[string]string{"Original": original, "Normalized": normalized})
	if err != nil {
		return classification{}, err
	}

	reply, err := c.invoker.Complete(ctx, Prompt{System: system, User: user, MaxTokens: 500, Temperature: 0.1})
	if err != nil {
		return classification{}, err
	}

	return c.decode(reply)
}

func (c *Classifier) decode(reply string) (classification, error) {
	body := stripCodeFence(reply)

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return classification{}, fmt.Errorf("failed to decode classifier output: %w", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return classification{}, fmt.Errorf("classifier output does not match schema: %w", err)
	}

	var result classification
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return classification{}, fmt.Errorf("failed to decode classifier output: %w", err)
	}
	return result, nil
}

func compileClassificationSchema() (*jsonschema.Schema, error) {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	schema := map[string]any{
		"type":     "object",
		"required": []string{"intent", "confidence"},
		"properties": map[string]any{
			"intent":     map[string]any{"type": "string", "enum": model.IntentNames()},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"slots": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"phone_number":        nullableString,
					"security_pin":        nullableString,
					"language_preference": map[string]any{"type": []string{"string", "null"}, "enum": []any{"EN", "BM", nil}},
				},
			},
		},
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode classification schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(classificationSchemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("classification schema load failed: %w", err)
	}
	compiled, err := compiler.Compile(classificationSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("classification schema compile failed: %w", err)
	}
	return compiled, nil
}
