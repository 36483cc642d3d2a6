package nlu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

// FallbackReply is returned when generation fails.
const FallbackReply = "I'm sorry, I encountered an error. Please try again or contact customer service."

var languageNames = map[model.Language]string{
	model.LanguageEN: "English",
	model.LanguageBM: "Bahasa Malaysia",
}

var _ model.Generator = (*Generator)(nil)

// Generator renders user-facing replies and translations.
type Generator struct {
	invoker *Invoker
	logger  *logger.Logger
}

func NewGenerator(invoker *Invoker, logger *logger.Logger) *Generator {
	return &Generator{invoker: invoker, logger: logger}
}

// Generate writes the reply for intent from the facts in data.
func (g *Generator) Generate(ctx context.Context, intent string, data map[string]any, lang model.Language) string {
	reply, err := g.generate(ctx, intent, data, lang)
	if err != nil {
		g.logger.Error("Generator: failed to generate reply",
			"intent", intent,
			"error", err.Error())
		return FallbackReply
	}
	return CleanMarkdown(reply)
}

func (g *Generator) generate(ctx context.Context, intent string, data map[string]any, lang model.Language) (string, error) {
	facts, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode context: %w", err)
	}

	vars := map[string]string{
		"Intent":       intent,
		"Context":      string(facts),
		"Language":     string(lang),
		"LanguageName": languageNames[model.ParseLanguage(string(lang))],
	}
	system, err := render("generate_system.txt", vars)
	if err != nil {
		return "", err
	}
	user, err := render("generate_user.txt", vars)
	if err != nil {
		return "", err
	}

	return g.invoker.Complete(ctx, Prompt{System: system, User: user, MaxTokens: 500, Temperature: 0.7})
}

// Translate renders text in Bahasa Malaysia.
func (g *Generator) Translate(ctx context.Context, text string) (string, error) {
	vars := map[string]string{"Target": languageNames[model.LanguageBM], "Text": text}
	system, err := render("translate_system.txt", vars)
	if err != nil {
		return "", err
	}
	user, err := render("translate_user.txt", vars)
	if err != nil {
		return "", err
	}

	translated, err := g.invoker.Complete(ctx, Prompt{System: system, User: user, MaxTokens: 1000, Temperature: 0.3})
	if err != nil {
		return "", fmt.Errorf("failed to translate: %w", err)
	}
	return translated, nil
}
