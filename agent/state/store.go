package state

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

var (
	ErrSessionNotFound = errors.New("quote session not found")
	ErrNilSession      = errors.New("quote session is nil")
)

const (
	defaultStoreKeyPrefix = "quote:session:"
	defaultStoreTTL       = 7 * 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
	recentIndexSuffix     = "_recent"
)

// Store persists sessions between operator turns.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, sessionID string) error
}

// RecentLister is implemented by stores that can list recently updated
// sessions, most recent first.
type RecentLister interface {
	Recent(ctx context.Context, limit int) ([]string, error)
}

var (
	_ RecentLister = (*UpstashRedisStore)(nil)
	_ RecentLister = (*MemoryStore)(nil)
)

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithSessionOptions are passed to RestoreSession on Load.
func WithSessionOptions(opts ...SessionOption) StoreOption {
	return func(s *UpstashRedisStore) {
		s.opts = append(s.opts, opts...)
	}
}

// UpstashRedisStore keeps SessionRecords in Upstash Redis via its REST API.
// Next to each record it maintains a sorted set of session ids scored by
// last update, so recent sessions can be listed without a key scan.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
	opts       []SessionOption
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultStoreKeyPrefix,
		ttl:        defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrSessionNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal([]byte(encoded), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	if err := rec.Quote.CheckConsistency(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from store: %w", err)
	}

	return RestoreSession(rec, s.opts...)
}

// Save writes the record and bumps the session in the recent index in one
// pipeline. Index entries older than the TTL are pruned on the way.
func (s *UpstashRedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(sess.ID) == "" {
		return ErrInvalidSession
	}
	if sess.UpdatedAt.IsZero() {
		sess.Touch(time.Now())
	}

	key, err := s.redisKey(sess.ID)
	if err != nil {
		return err
	}
	record, err := json.Marshal(sess.Record())
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	set := []any{"SET", key, string(record)}
	if s.ttl > 0 {
		set = append(set, "EX", ttlSeconds(s.ttl))
	}
	cmds := [][]any{
		set,
		{"ZADD", s.indexKey(), sess.UpdatedAt.Unix(), sess.ID},
	}
	if s.ttl > 0 {
		cutoff := sess.UpdatedAt.Add(-s.ttl).Unix()
		cmds = append(cmds, []any{"ZREMRANGEBYSCORE", s.indexKey(), "-inf", fmt.Sprintf("(%d", cutoff)})
	}

	_, err = s.pipeline(ctx, cmds)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return err
	}
	_, err = s.pipeline(ctx, [][]any{
		{"DEL", key},
		{"ZREM", s.indexKey(), strings.TrimSpace(sessionID)},
	})
	return err
}

// Recent returns up to limit session ids, most recently updated first.
func (s *UpstashRedisStore) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	resp, err := s.exec(ctx, []any{"ZREVRANGE", s.indexKey(), 0, limit - 1})
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(resp.Result, &ids); err != nil {
		return nil, fmt.Errorf("decode recent sessions: %w", err)
	}
	return ids, nil
}

func (s *UpstashRedisStore) prefix() string {
	prefix := strings.TrimSpace(s.keyPrefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix
}

func (s *UpstashRedisStore) redisKey(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	return s.prefix() + strings.TrimSpace(sessionID), nil
}

func (s *UpstashRedisStore) indexKey() string {
	return strings.TrimRight(s.prefix(), ":") + recentIndexSuffix
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	raw, err := s.post(ctx, s.baseURL, command)
	if err != nil {
		return nil, err
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

// pipeline sends commands through the /pipeline endpoint. Upstash runs them
// in order but not atomically; the first failed command is reported.
func (s *UpstashRedisStore) pipeline(ctx context.Context, commands [][]any) ([]redisRESTResponse, error) {
	if len(commands) == 0 {
		return nil, errors.New("empty redis pipeline")
	}

	raw, err := s.post(ctx, s.baseURL+"/pipeline", commands)
	if err != nil {
		return nil, err
	}

	var parsed []redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis pipeline response: %w", err)
	}
	if len(parsed) != len(commands) {
		return nil, fmt.Errorf("redis pipeline returned %d results for %d commands", len(parsed), len(commands))
	}
	for i, r := range parsed {
		if r.Error != "" {
			return nil, fmt.Errorf("redis pipeline command %d (%v): %s", i, commands[i][0], r.Error)
		}
	}
	return parsed, nil
}

func (s *UpstashRedisStore) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	if strings.TrimSpace(s.token) == "" {
		return nil, errors.New("empty redis token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := int64((ttl + time.Second - 1) / time.Second)
	if seconds <= 0 {
		return 1
	}
	return seconds
}
