package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"taskjama/internal/domain"
	"taskjama/internal/engine/auth"
	"taskjama/internal/events"
	"taskjama/internal/mojibake"
)

const DefaultDisruptionType = "mojibake"

type DisruptOptions struct {
	DisruptorID string
	TodoID      string
	Type        string
}

type DisruptResult struct {
	Disruption domain.Disruption `json:"disruption"`
	Todo       domain.Todo       `json:"todo"`
	Balance    int               `json:"balance"`
}

// Disrupt charges the disruptor, records the disruption and corrupts the
// target title in one transaction. Any failure leaves all three untouched.
func (e Engine) Disrupt(ctx context.Context, opts DisruptOptions) (DisruptResult, error) {
	kind := strings.TrimSpace(opts.Type)
	if kind == "" {
		kind = DefaultDisruptionType
	}
	if kind != DefaultDisruptionType {
		return DisruptResult{}, invalid("unsupported disruption type %q", kind)
	}
	cost := e.Config.Economy.JamaCost

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return DisruptResult{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTodo(ctx, tx, opts.TodoID)
	if err != nil {
		return DisruptResult{}, err
	}
	if t.UserID == opts.DisruptorID {
		return DisruptResult{}, auth.ForbiddenError{Action: "jama", Reason: "cannot disrupt your own todo"}
	}
	if err := e.Auth.RequireFriends(ctx, tx, "jama", opts.DisruptorID, t.UserID); err != nil {
		return DisruptResult{}, err
	}
	balance, err := e.spend(ctx, tx, opts.DisruptorID, cost, "jama")
	if err != nil {
		return DisruptResult{}, err
	}

	now := e.stamp()
	d := domain.Disruption{
		ID:           uuid.NewString(),
		DisruptorID:  opts.DisruptorID,
		TargetTodoID:  t.ID,
		TargetOwnerID: t.UserID,
		PointsSpent:   cost,
		Type:         kind,
		CreatedAt:    now,
	}
	if err := e.Repo.InsertDisruption(ctx, tx, d); err != nil {
		return DisruptResult{}, fmt.Errorf("insert disruption: %w", err)
	}

	res := e.Corrupter.Corrupt(t.Title, mojibake.State{Count: t.DisruptionCount, Positions: t.CorruptedPositions}, t.DisruptionCount+1, e.Rand)
	t.Title = res.Text
	t.DisruptionCount = res.State.Count
	t.CorruptedPositions = res.State.Positions
	t.IsDisguised = true
	disruptor := opts.DisruptorID
	t.DisguisedBy = &disruptor
	t.UpdatedAt = now
	if err := e.Repo.ApplyCorruption(ctx, tx, t); err != nil {
		return DisruptResult{}, fmt.Errorf("corrupt todo: %w", err)
	}
	if err := e.eventLog().Append(ctx, tx, events.TodoDisrupted, "todo", t.ID, opts.DisruptorID, events.EventPayload{
		"disruption_id":    d.ID,
		"owner_id":         t.UserID,
		"disruption_count": t.DisruptionCount,
		"points_spent":     cost,
	}); err != nil {
		return DisruptResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return DisruptResult{}, err
	}
	return DisruptResult{Disruption: d, Todo: t, Balance: balance}, nil
}

func (e Engine) ListDisruptionsSent(ctx context.Context, userID string, limit int) ([]domain.Disruption, error) {
	return e.Repo.ListDisruptionsSent(ctx, userID, limit)
}

func (e Engine) ListDisruptionsReceived(ctx context.Context, userID string, limit int) ([]domain.Disruption, error) {
	return e.Repo.ListDisruptionsReceived(ctx, userID, limit)
}
