package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type LLMBuilder interface {
	New(ctx context.Context) (model.ToolCallingChatModel, error)
}

var _ LLMBuilder = (*OpenRouterConfig)(nil)

// Models that stream reasoning tokens unless told not to; the proposer only
// wants the tool calls and the short reply.
var reasoningExcluded = map[string]bool{
	"x-ai/grok-4.1-fast":   true,
	"deepseek/deepseek-r1": true,
	"openai/o4-mini":       true,
}

type OpenRouterConfig struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken *int          `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

type Config = OpenRouterConfig

// New builds the eino chat model. OpenRouter attribution headers ride on the
// HTTP client so every completion request carries them.
func (c *OpenRouterConfig) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	modelName := strings.TrimSpace(c.Model)
	if modelName == "" {
		return nil, errors.New("openrouter: model name is empty")
	}
	temperature := c.Temperature

	conf := &openaimodel.ChatModelConfig{
		BaseURL:     strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       modelName,
		MaxTokens:   c.MaxCompletionToken,
		Temperature: &temperature,
		HTTPClient:  c.httpClient(),
	}
	if reasoningExcluded[modelName] {
		conf.ExtraFields = map[string]any{
			"reasoning": map[string]any{
				"exclude": true,
				"effort":  "none",
			},
		}
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create chat model: %w", err)
	}
	return m, nil
}

func (c *OpenRouterConfig) headers() map[string]string {
	h := map[string]string{}
	if v := strings.TrimSpace(c.SiteURL); v != "" {
		h["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(c.SiteName); v != "" {
		h["X-Title"] = v
	}
	return h
}

func (c *OpenRouterConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: headerTransport{base: http.DefaultTransport, headers: c.headers()},
	}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// NewClient creates an OpenAI SDK client pointed at OpenRouter, used for
// model metadata calls outside the eino graph. It returns nil without a key.
func NewClient(cfg Config) *openaisdk.Client {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(cfg.httpClient()),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}

// Preflight checks that the configured model is served by the endpoint, so a
// typo in the model name fails at startup rather than on the first turn.
func Preflight(ctx context.Context, client *openaisdk.Client, modelName string) error {
	if client == nil {
		return errors.New("openrouter: client is nil")
	}
	name := strings.TrimSpace(modelName)
	if name == "" {
		return errors.New("openrouter: model name is empty")
	}
	m, err := client.Models.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("openrouter: model %q unavailable: %w", name, err)
	}
	if m == nil || m.ID == "" {
		return fmt.Errorf("openrouter: model %q unavailable", name)
	}
	return nil
}
