package qstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	URL               string        `split_words:"true" required:"true"`
	Token             string        `split_words:"true" required:"true"`
	CurrentSigningKey string        `split_words:"true"`
	NextSigningKey    string        `split_words:"true"`
	Timeout           time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL           string
	token             string
	currentSigningKey string
	nextSigningKey    string
	httpClient        *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("qstash token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		token:             token,
		currentSigningKey: strings.TrimSpace(cfg.CurrentSigningKey),
		nextSigningKey:    strings.TrimSpace(cfg.NextSigningKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type publishOptions struct {
	deduplicationID string
	retries         *int
}

type PublishOption func(*publishOptions)

// WithDeduplicationID makes QStash drop repeated publishes with the same id.
func WithDeduplicationID(id string) PublishOption {
	return func(o *publishOptions) {
		o.deduplicationID = strings.TrimSpace(id)
	}
}

func WithRetries(n int) PublishOption {
	return func(o *publishOptions) {
		if n >= 0 {
			o.retries = &n
		}
	}
}

type publishResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// Publish enqueues a JSON body for delivery to destination and returns the
// QStash message id.
func (c *Client) Publish(ctx context.Context, destination string, body []byte, opts ...PublishOption) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", errors.New("qstash destination is required")
	}

	var po publishOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&po)
		}
	}

	endpoint := c.baseURL + "/v2/publish/" + destination
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build qstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	if po.deduplicationID != "" {
		req.Header.Set("Upstash-Deduplication-Id", po.deduplicationID)
	}
	if po.retries != nil {
		req.Header.Set("Upstash-Retries", fmt.Sprintf("%d", *po.retries))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("qstash publish: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("read qstash response: %w", err)
	}

	var out publishResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
			return "", fmt.Errorf("decode qstash response: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		if out.Error != "" {
			return "", fmt.Errorf("qstash publish status %d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("qstash publish status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return out.MessageID, nil
}
