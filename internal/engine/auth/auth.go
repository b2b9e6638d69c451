package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// ForbiddenError indicates the user may not perform action.
type ForbiddenError struct {
	Action string
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s not allowed", e.Action)
	}
	return fmt.Sprintf("%s not allowed: %s", e.Action, e.Reason)
}

// Service answers relationship and ownership questions inside the caller's transaction.
type Service struct {
	DB *sql.DB
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s Service) q(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return s.DB
}

// AreFriends reports whether a and b share an ACCEPTED friendship.
func (s Service) AreFriends(ctx context.Context, tx *sql.Tx, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	row := s.q(tx).QueryRowContext(ctx, `SELECT 1 FROM friendships
WHERE status='ACCEPTED' AND ((user_id_1=? AND user_id_2=?) OR (user_id_1=? AND user_id_2=?)) LIMIT 1`, a, b, b, a)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// OwnsTodo reports whether userID owns todoID. A missing todo is not owned.
func (s Service) OwnsTodo(ctx context.Context, tx *sql.Tx, userID, todoID string) (bool, error) {
	row := s.q(tx).QueryRowContext(ctx, `SELECT 1 FROM todos WHERE todo_id=? AND user_id=? LIMIT 1`, todoID, userID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// RequireFriends returns ForbiddenError unless a and b are accepted friends.
func (s Service) RequireFriends(ctx context.Context, tx *sql.Tx, action, a, b string) error {
	ok, err := s.AreFriends(ctx, tx, a, b)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Action: action, Reason: "not friends"}
	}
	return nil
}

// RequireOwner returns ForbiddenError unless userID owns todoID.
func (s Service) RequireOwner(ctx context.Context, tx *sql.Tx, action, userID, todoID string) error {
	ok, err := s.OwnsTodo(ctx, tx, userID, todoID)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Action: action, Reason: "not the owner"}
	}
	return nil
}
