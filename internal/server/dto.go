package server

import (
	"taskjama/internal/domain"
)

// Request payloads

type RegisterRequest struct {
	Email    string `json:"email" format:"email"`
	Username string `json:"username,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type CreateTodoRequest struct {
	Title       string  `json:"title" minLength:"1"`
	Description *string `json:"description,omitempty"`
	DeadlineAt  *string `json:"deadline_at,omitempty" format:"date-time"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
}

type UpdateTodoRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DeadlineAt  *string `json:"deadline_at,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

type FriendRequestRequest struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

type DisruptRequest struct {
	TodoID string `json:"todo_id"`
	Type   string `json:"disruption_type,omitempty" enum:"mojibake"`
}

type CriticismRequest struct {
	TodoID string `json:"todo_id"`
	// WithOpenTodos critiques the todo alongside the owner's other unfinished todos.
	WithOpenTodos bool `json:"with_open_todos,omitempty"`
}

type InciteRequest struct {
	Content string `json:"content" minLength:"1"`
}

// Response payloads

type RegisterResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

// PublicUserResponse is what other users may see of an account.
type PublicUserResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	// Key is only present in the create response.
	Key string `json:"key,omitempty"`
}

type CompleteTodoResponse struct {
	Todo   domain.Todo `json:"todo"`
	Points int         `json:"points"`
}

type EventsResponse struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type CommentaryResponse struct {
	Message string `json:"message"`
}

type PaymentLinkResponse struct {
	URL string `json:"url"`
}

func apiKeyResponse(k domain.APIKey, raw string) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt, Key: raw}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
