// Package commentary talks to the AI service that heckles users about their
// todos. Every failure degrades to a canned line so callers always get text.
package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCriticismFallback = "そんなことやってんの？もっと大事なことあんじゃない？"
	DefaultInciteFallback    = "その程度の活動で満足なの？もっとやれよ！"

	defaultTimeout = 10 * time.Second
	maxReplyBytes  = 64 << 10
)

type Client struct {
	baseURL           string
	apiKey            string
	client            *http.Client
	logger            *zap.Logger
	criticismFallback string
	inciteFallback    string
}

type Option func(*Client)

// WithAPIKey sends key in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithFallbacks overrides the canned replies. Empty values keep the defaults.
func WithFallbacks(criticism, incite string) Option {
	return func(c *Client) {
		if criticism != "" {
			c.criticismFallback = criticism
		}
		if incite != "" {
			c.inciteFallback = incite
		}
	}
}

// New returns a client for baseURL. An empty baseURL is valid: every call
// then returns the fallback without touching the network.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		client:            &http.Client{Timeout: defaultTimeout},
		logger:            zap.NewNop(),
		criticismFallback: DefaultCriticismFallback,
		inciteFallback:    DefaultInciteFallback,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a remote service is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Criticize asks for a critical remark about a todo title.
func (c *Client) Criticize(ctx context.Context, todo string) string {
	reply, err := c.post(ctx, "/criticism/todo", map[string]string{"todo": todo})
	if err != nil {
		c.logger.Warn("criticism request failed", zap.String("todo", todo), zap.Error(err))
		return c.criticismFallback
	}
	return reply
}

// TodoLite is the slice of a todo the service needs for a batch critique.
type TodoLite struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// CriticizeBatch critiques target in the light of the user's other open
// todos. Without others it sends the single-todo request.
func (c *Client) CriticizeBatch(ctx context.Context, target TodoLite, others []TodoLite) string {
	if len(others) == 0 {
		return c.Criticize(ctx, target.Title)
	}
	reply, err := c.post(ctx, "/criticism/todo", struct {
		TargetTodo TodoLite   `json:"targetTodo"`
		OtherTodos []TodoLite `json:"otherTodos"`
	}{target, others})
	if err != nil {
		c.logger.Warn("batch criticism request failed", zap.String("todo", target.Title), zap.Int("others", len(others)), zap.Error(err))
		return c.criticismFallback
	}
	return reply
}

// Incite asks for a provocation about an activity description.
func (c *Client) Incite(ctx context.Context, content string) string {
	reply, err := c.post(ctx, "/incite", map[string]string{"content": content})
	if err != nil {
		c.logger.Warn("incite request failed", zap.Error(err))
		return c.inciteFallback
	}
	return reply
}

func (c *Client) post(ctx context.Context, path string, body any) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("commentary service not configured")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	reply := strings.TrimSpace(string(raw))
	if reply == "" {
		return "", fmt.Errorf("empty reply")
	}
	return reply, nil
}
