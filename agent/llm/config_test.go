package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
)

func TestOpenRouterOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:              " key ",
		Model:               "openai/gpt-4o-mini",
		MaxCompletionToken:  1500,
		Temperature:         0.2,
		ProposerTemperature: -1,
	}
	got := cfg.OpenRouter()
	if got.Model != "openai/gpt-4o-mini" || got.Temperature != 0.2 || got.APIKey != "key" {
		t.Fatalf("unexpected config: %+v", got)
	}
	if got.MaxCompletionToken == nil || *got.MaxCompletionToken != 1500 {
		t.Fatalf("unexpected max tokens: %v", got.MaxCompletionToken)
	}

	cfg.ProposerModel = "mistralai/mistral-large"
	cfg.ProposerTemperature = 0
	got = cfg.OpenRouter()
	if got.Model != "mistralai/mistral-large" || got.Temperature != 0 {
		t.Fatalf("overrides not applied: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m", MaxCompletionToken: 10}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing key, got %v", err)
	}
	if err := (Config{APIKey: "k", MaxCompletionToken: 10}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing model, got %v", err)
	}
	if err := (Config{APIKey: "k", ProposerModel: "m", MaxCompletionToken: 10}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
