package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"taskjama/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrConflict reports a uniqueness violation (duplicate email, duplicate pair).
var ErrConflict = errors.New("conflict")

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// q returns tx when set, else the pool.
func (r Repo) q(tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errors.Join(ErrConflict, err)
	}
	return err
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

const userColumns = `user_id,email,username,points,created_at,updated_at`

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Points, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(user_id,email,username,points,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Email, u.Username, u.Points, u.CreatedAt, u.UpdatedAt)
	return mapConstraint(err)
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, tx *sql.Tx, email string) (domain.User, error) {
	return scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower(?)`, strings.TrimSpace(email)))
}

// ListUsers returns the users with the given ids keyed by id. Unknown ids are skipped.
func (r Repo) ListUsers(ctx context.Context, ids []string) (map[string]domain.User, error) {
	res := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res[u.ID] = u
	}
	return res, rows.Err()
}

// AddPoints applies a signed delta unconditionally and returns the new balance.
// The users.points CHECK constraint still refuses a negative result.
func (r Repo) AddPoints(ctx context.Context, tx *sql.Tx, userID string, delta int, now string) (int, error) {
	if now == "" {
		now = nowString()
	}
	var balance int
	err := r.q(tx).QueryRowContext(ctx, `UPDATE users SET points=points+?, updated_at=? WHERE user_id=? RETURNING points`, delta, now, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return balance, err
}

// DebitPoints subtracts cost only if the balance covers it. ok is false when
// the user exists but cannot afford the cost; nothing is written in that case.
func (r Repo) DebitPoints(ctx context.Context, tx *sql.Tx, userID string, cost int, now string) (balance int, ok bool, err error) {
	if now == "" {
		now = nowString()
	}
	q := r.q(tx)
	err = q.QueryRowContext(ctx, `UPDATE users SET points=points-?, updated_at=? WHERE user_id=? AND points>=? RETURNING points`,
		cost, now, userID, cost).Scan(&balance)
	if err == nil {
		return balance, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=?`, userID))
	if err != nil {
		return 0, false, err
	}
	return u.Points, false, nil
}
