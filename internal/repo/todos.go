package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"taskjama/internal/domain"
)

const todoColumns = `todo_id,user_id,title,COALESCE(description,''),is_completed,is_disguised,disguised_by,disruption_count,corrupted_positions,deadline_at,due_date,created_at,updated_at`

type TodoFilters struct {
	UserID    string
	Completed *bool
	Limit     int
}

func scanTodo(row rowScanner) (domain.Todo, error) {
	var t domain.Todo
	var completed, disguised int
	var disguisedBy, deadline, due sql.NullString
	var positions string
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &completed, &disguised, &disguisedBy,
		&t.DisruptionCount, &positions, &deadline, &due, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.IsCompleted = completed != 0
	t.IsDisguised = disguised != 0
	t.DisguisedBy = stringPtr(disguisedBy)
	t.DeadlineAt = stringPtr(deadline)
	t.DueDate = stringPtr(due)
	if positions != "" {
		if err := json.Unmarshal([]byte(positions), &t.CorruptedPositions); err != nil {
			return t, fmt.Errorf("todo %s corrupted_positions: %w", t.ID, err)
		}
	}
	return t, nil
}

func encodePositions(p []int) (string, error) {
	if len(p) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r Repo) InsertTodo(ctx context.Context, tx *sql.Tx, t domain.Todo) error {
	positions, err := encodePositions(t.CorruptedPositions)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO todos(todo_id,user_id,title,description,is_completed,is_disguised,disguised_by,disruption_count,corrupted_positions,deadline_at,due_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Title, nullable(t.Description), boolToInt(t.IsCompleted), boolToInt(t.IsDisguised),
		nullableStringPtr(t.DisguisedBy), t.DisruptionCount, positions,
		nullableStringPtr(t.DeadlineAt), nullableStringPtr(t.DueDate), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTodo(ctx context.Context, tx *sql.Tx, id string) (domain.Todo, error) {
	return scanTodo(r.q(tx).QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE todo_id=?`, id))
}

// ListTodos returns todos newest first.
func (r Repo) ListTodos(ctx context.Context, f TodoFilters) ([]domain.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE 1=1`
	var args []any
	if f.UserID != "" {
		query += ` AND user_id=?`
		args = append(args, f.UserID)
	}
	if f.Completed != nil {
		query += ` AND is_completed=?`
		args = append(args, boolToInt(*f.Completed))
	}
	query += ` ORDER BY created_at DESC, todo_id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

type usernameScanner struct {
	row  rowScanner
	name *string
}

func (s usernameScanner) Scan(dest ...any) error {
	return s.row.Scan(append(dest, s.name)...)
}

// ListOverdueFriendTodos returns unfinished todos of userID's accepted friends
// whose due date sorts before today, earliest due first.
func (r Repo) ListOverdueFriendTodos(ctx context.Context, userID, today string, limit int) ([]domain.OverdueTodo, error) {
	query := `SELECT ` + todoColumns + `,(SELECT username FROM users u WHERE u.user_id=todos.user_id)
FROM todos
WHERE is_completed=0 AND due_date IS NOT NULL AND due_date<?
  AND user_id IN (
    SELECT CASE WHEN user_id_1=? THEN user_id_2 ELSE user_id_1 END
    FROM friendships WHERE status=? AND (user_id_1=? OR user_id_2=?))
ORDER BY due_date ASC, created_at ASC`
	args := []any{today, userID, string(domain.FriendshipAccepted), userID, userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OverdueTodo
	for rows.Next() {
		var o domain.OverdueTodo
		t, err := scanTodo(usernameScanner{row: rows, name: &o.Username})
		if err != nil {
			return nil, err
		}
		o.Todo = t
		res = append(res, o)
	}
	return res, rows.Err()
}

// UpdateTodo writes the owner-editable fields and the completion flag.
func (r Repo) UpdateTodo(ctx context.Context, tx *sql.Tx, t domain.Todo) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE todos SET title=?, description=?, is_completed=?, deadline_at=?, due_date=?, updated_at=? WHERE todo_id=?`,
		t.Title, nullable(t.Description), boolToInt(t.IsCompleted), nullableStringPtr(t.DeadlineAt), nullableStringPtr(t.DueDate), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ApplyCorruption persists a disrupted title together with the corruption state.
func (r Repo) ApplyCorruption(ctx context.Context, tx *sql.Tx, t domain.Todo) error {
	positions, err := encodePositions(t.CorruptedPositions)
	if err != nil {
		return err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE todos SET title=?, is_disguised=?, disguised_by=?, disruption_count=?, corrupted_positions=?, updated_at=? WHERE todo_id=?`,
		t.Title, boolToInt(t.IsDisguised), nullableStringPtr(t.DisguisedBy), t.DisruptionCount, positions, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r Repo) DeleteTodo(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM todos WHERE todo_id=?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
