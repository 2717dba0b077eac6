package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	openrouterx "github.com/tanpawarit/quote-assistant/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	// Optional overrides for the proposer; negative temperature means unset.
	ProposerModel       string  `envconfig:"PROPOSER_MODEL" split_words:"true"`
	ProposerTemperature float32 `envconfig:"PROPOSER_TEMPERATURE" split_words:"true" default:"-1"`

	SkipPreflight bool `envconfig:"SKIP_PREFLIGHT" split_words:"true" default:"false"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" && strings.TrimSpace(c.ProposerModel) == "" {
		return fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	if c.MaxCompletionToken <= 0 {
		return fmt.Errorf("%w: max completion token must be > 0", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouter() openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	if v := strings.TrimSpace(c.ProposerModel); v != "" {
		modelName = v
	}
	temp := c.Temperature
	if c.ProposerTemperature >= 0 {
		temp = c.ProposerTemperature
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
