package taskjamasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal taskjama HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

type User struct {
	ID       string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}

type Todo struct {
	ID              string  `json:"todo_id"`
	UserID          string  `json:"user_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	IsCompleted     bool    `json:"is_completed"`
	IsDisguised     bool    `json:"is_disguised"`
	DisguisedBy     *string `json:"disguised_by,omitempty"`
	DisruptionCount int     `json:"disruption_count"`
	DeadlineAt      *string `json:"deadline_at,omitempty"`
	DueDate         *string `json:"due_date,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type Friendship struct {
	ID          string `json:"friendship_id"`
	Status      string `json:"status"`
	RequesterID string `json:"requester_id"`
	RequestedAt string `json:"requested_at"`
}

type Friend struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// OverdueTodo is a friend's unfinished todo past its due date.
type OverdueTodo struct {
	Todo
	Username string `json:"username"`
}

type PendingRequest struct {
	FriendshipID string `json:"friendship_id"`
	RequesterID  string `json:"requester_id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	RequestedAt  string `json:"requested_at"`
}

type Disruption struct {
	ID           string `json:"disruption_id"`
	DisruptorID  string `json:"disruptor_id"`
	TargetTodoID  string `json:"target_todo_id"`
	TargetOwnerID string `json:"target_owner_id"`
	PointsSpent   int    `json:"points_spent"`
	Type         string `json:"disruption_type"`
	CreatedAt    string `json:"created_at"`
}

// DisruptResult is the outcome of a jama: the record, the scrambled todo
// and the disruptor's remaining balance.
type DisruptResult struct {
	Disruption Disruption `json:"disruption"`
	Todo       Todo       `json:"todo"`
	Balance    int        `json:"balance"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates an account. Token is empty when the server has no JWT secret.
func (c *Client) Register(ctx context.Context, email, username string) (User, string, error) {
	var resp struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "users", map[string]any{"email": email, "username": username}, &resp)
	return resp.User, resp.Token, err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// CreateAPIKey returns the raw key, which the server never shows again.
func (c *Client) CreateAPIKey(ctx context.Context, name string) (string, error) {
	var resp struct {
		Key string `json:"key"`
	}
	err := c.do(ctx, http.MethodPost, "me/api-keys", map[string]any{"name": name}, &resp)
	return resp.Key, err
}

func (c *Client) CreateTodo(ctx context.Context, title, description string) (Todo, error) {
	body := map[string]any{"title": title}
	if description != "" {
		body["description"] = description
	}
	var resp Todo
	err := c.do(ctx, http.MethodPost, "todos", body, &resp)
	return resp, err
}

// ListTodos returns the caller's todos. A nil completed lists all.
func (c *Client) ListTodos(ctx context.Context, completed *bool) ([]Todo, error) {
	endpoint := "todos"
	if completed != nil {
		endpoint += "?completed=" + strconv.FormatBool(*completed)
	}
	var resp []Todo
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RenameTodo sets a new title, which also clears any scramble.
func (c *Client) RenameTodo(ctx context.Context, todoID, title string) (Todo, error) {
	var resp Todo
	err := c.do(ctx, http.MethodPatch, "todos/"+url.PathEscape(todoID), map[string]any{"title": title}, &resp)
	return resp, err
}

func (c *Client) DeleteTodo(ctx context.Context, todoID string) error {
	return c.do(ctx, http.MethodDelete, "todos/"+url.PathEscape(todoID), nil, nil)
}

// CompleteTodo returns the completed todo and the new point balance.
func (c *Client) CompleteTodo(ctx context.Context, todoID string) (Todo, int, error) {
	var resp struct {
		Todo   Todo `json:"todo"`
		Points int  `json:"points"`
	}
	err := c.do(ctx, http.MethodPost, "todos/"+url.PathEscape(todoID)+"/complete", nil, &resp)
	return resp.Todo, resp.Points, err
}

// RequestFriend targets an email when the argument contains "@", a user id otherwise.
func (c *Client) RequestFriend(ctx context.Context, target string) (Friendship, error) {
	body := map[string]any{"user_id": target}
	if strings.Contains(target, "@") {
		body = map[string]any{"email": target}
	}
	var resp Friendship
	err := c.do(ctx, http.MethodPost, "friends/requests", body, &resp)
	return resp, err
}

func (c *Client) PendingRequests(ctx context.Context) ([]PendingRequest, error) {
	var resp []PendingRequest
	err := c.do(ctx, http.MethodGet, "friends/requests", nil, &resp)
	return resp, err
}

func (c *Client) AcceptFriend(ctx context.Context, friendshipID string) (Friendship, error) {
	var resp Friendship
	err := c.do(ctx, http.MethodPost, "friends/requests/"+url.PathEscape(friendshipID)+"/accept", nil, &resp)
	return resp, err
}

func (c *Client) RejectFriend(ctx context.Context, friendshipID string) (Friendship, error) {
	var resp Friendship
	err := c.do(ctx, http.MethodPost, "friends/requests/"+url.PathEscape(friendshipID)+"/reject", nil, &resp)
	return resp, err
}

func (c *Client) Friends(ctx context.Context) ([]Friend, error) {
	var resp []Friend
	err := c.do(ctx, http.MethodGet, "friends", nil, &resp)
	return resp, err
}

func (c *Client) FriendTodos(ctx context.Context, friendID string) ([]Todo, error) {
	var resp []Todo
	err := c.do(ctx, http.MethodGet, "friends/"+url.PathEscape(friendID)+"/todos", nil, &resp)
	return resp, err
}

// FriendsOverdue returns the friends' news feed, earliest due first.
func (c *Client) FriendsOverdue(ctx context.Context) ([]OverdueTodo, error) {
	var resp []OverdueTodo
	err := c.do(ctx, http.MethodGet, "friends/overdue", nil, &resp)
	return resp, err
}

// Jama spends points to scramble a friend's todo.
func (c *Client) Jama(ctx context.Context, todoID string) (DisruptResult, error) {
	var resp DisruptResult
	err := c.do(ctx, http.MethodPost, "disruptions", map[string]any{"todo_id": todoID}, &resp)
	return resp, err
}

func (c *Client) DisruptionsReceived(ctx context.Context) ([]Disruption, error) {
	var resp []Disruption
	err := c.do(ctx, http.MethodGet, "disruptions/received", nil, &resp)
	return resp, err
}

func (c *Client) Criticize(ctx context.Context, todoID string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "commentary/criticism", map[string]any{"todo_id": todoID}, &resp)
	return resp.Message, err
}

func (c *Client) Incite(ctx context.Context, content string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "commentary/incite", map[string]any{"content": content}, &resp)
	return resp.Message, err
}

func (c *Client) PaymentLink(ctx context.Context) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, http.MethodGet, "payment-link", nil, &resp)
	return resp.URL, err
}

// EventsPage returns a page of the caller's events, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
