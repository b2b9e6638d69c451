package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"taskjama/internal/domain"
	"taskjama/internal/events"
	"taskjama/internal/repo"
)

var ErrAlreadyCompleted = errors.New("todo already completed")

type TodoCreateOptions struct {
	UserID      string
	Title       string
	Description string
	DeadlineAt  string
	DueDate     string
}

func (e Engine) CreateTodo(ctx context.Context, opts TodoCreateOptions) (domain.Todo, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Todo{}, invalid("title is required")
	}
	now := e.stamp()
	t := domain.Todo{
		ID:          uuid.NewString(),
		UserID:      opts.UserID,
		Title:       title,
		Description: opts.Description,
		DeadlineAt:  optionalString(opts.DeadlineAt),
		DueDate:     optionalString(opts.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Todo{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetUser(ctx, tx, opts.UserID); err != nil {
		return domain.Todo{}, fmt.Errorf("user %s: %w", opts.UserID, err)
	}
	if err := e.Repo.InsertTodo(ctx, tx, t); err != nil {
		return domain.Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	if err := e.eventLog().Append(ctx, tx, events.TodoCreated, "todo", t.ID, opts.UserID, events.EventPayload{"title": t.Title}); err != nil {
		return domain.Todo{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Todo{}, err
	}
	return t, nil
}

// GetTodo returns a todo visible to viewerID: their own, or an accepted friend's.
func (e Engine) GetTodo(ctx context.Context, viewerID, todoID string) (domain.Todo, error) {
	t, err := e.Repo.GetTodo(ctx, nil, todoID)
	if err != nil {
		return domain.Todo{}, err
	}
	if t.UserID == viewerID {
		return t, nil
	}
	if err := e.Auth.RequireFriends(ctx, nil, "todo.view", viewerID, t.UserID); err != nil {
		return domain.Todo{}, err
	}
	return t, nil
}

func (e Engine) ListTodos(ctx context.Context, userID string, completed *bool) ([]domain.Todo, error) {
	return e.Repo.ListTodos(ctx, repo.TodoFilters{UserID: userID, Completed: completed})
}

// TodoUpdateOptions carries owner edits; nil fields are left unchanged.
type TodoUpdateOptions struct {
	UserID      string
	TodoID      string
	Title       *string
	Description *string
	DeadlineAt  *string
	DueDate     *string
}

func (e Engine) UpdateTodo(ctx context.Context, opts TodoUpdateOptions) (domain.Todo, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Todo{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTodo(ctx, tx, opts.TodoID)
	if err != nil {
		return domain.Todo{}, err
	}
	if err := e.Auth.RequireOwner(ctx, tx, "todo.update", opts.UserID, t.ID); err != nil {
		return domain.Todo{}, err
	}
	changed := map[string]any{}
	retitled := false
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return domain.Todo{}, invalid("title must not be empty")
		}
		if title != t.Title {
			t.Title = title
			retitled = true
			changed["title"] = title
		}
	}
	if opts.Description != nil {
		t.Description = *opts.Description
		changed["description"] = t.Description
	}
	if opts.DeadlineAt != nil {
		t.DeadlineAt = optionalString(*opts.DeadlineAt)
		changed["deadline_at"] = *opts.DeadlineAt
	}
	if opts.DueDate != nil {
		t.DueDate = optionalString(*opts.DueDate)
		changed["due_date"] = *opts.DueDate
	}
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTodo(ctx, tx, t); err != nil {
		return domain.Todo{}, err
	}
	// corrupted positions index the old title
	if retitled && len(t.CorruptedPositions) > 0 {
		t.CorruptedPositions = nil
		if err := e.Repo.ApplyCorruption(ctx, tx, t); err != nil {
			return domain.Todo{}, err
		}
	}
	if err := e.eventLog().Append(ctx, tx, events.TodoUpdated, "todo", t.ID, opts.UserID, changed); err != nil {
		return domain.Todo{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Todo{}, err
	}
	return t, nil
}

func (e Engine) DeleteTodo(ctx context.Context, userID, todoID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTodo(ctx, tx, todoID)
	if err != nil {
		return err
	}
	if err := e.Auth.RequireOwner(ctx, tx, "todo.delete", userID, t.ID); err != nil {
		return err
	}
	if err := e.Repo.DeleteTodo(ctx, tx, t.ID); err != nil {
		return err
	}
	if err := e.eventLog().Append(ctx, tx, events.TodoDeleted, "todo", t.ID, userID, events.EventPayload{"title": t.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// CompleteTodo marks the todo done and credits the task reward once.
func (e Engine) CompleteTodo(ctx context.Context, userID, todoID string) (domain.Todo, int, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Todo{}, 0, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTodo(ctx, tx, todoID)
	if err != nil {
		return domain.Todo{}, 0, err
	}
	if err := e.Auth.RequireOwner(ctx, tx, "todo.complete", userID, t.ID); err != nil {
		return domain.Todo{}, 0, err
	}
	if t.IsCompleted {
		return domain.Todo{}, 0, ErrAlreadyCompleted
	}
	t.IsCompleted = true
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTodo(ctx, tx, t); err != nil {
		return domain.Todo{}, 0, err
	}
	if err := e.eventLog().Append(ctx, tx, events.TodoCompleted, "todo", t.ID, userID, nil); err != nil {
		return domain.Todo{}, 0, err
	}
	balance, err := e.gain(ctx, tx, userID, e.Config.Economy.TaskGain, events.TodoCompleted)
	if err != nil {
		return domain.Todo{}, 0, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Todo{}, 0, err
	}
	return t, balance, nil
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
