package repo

import (
	"context"
	"database/sql"

	"taskjama/internal/domain"
)

const friendshipColumns = `friendship_id,user_id_1,user_id_2,status,requester_id,requested_at,responded_at,created_at,updated_at`

func scanFriendship(row rowScanner) (domain.Friendship, error) {
	var f domain.Friendship
	var status string
	var responded sql.NullString
	err := row.Scan(&f.ID, &f.UserID1, &f.UserID2, &status, &f.RequesterID, &f.RequestedAt, &responded, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	f.Status = domain.FriendshipStatus(status)
	f.RespondedAt = stringPtr(responded)
	return f, err
}

func (r Repo) InsertFriendship(ctx context.Context, tx *sql.Tx, f domain.Friendship) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO friendships(`+friendshipColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		f.ID, f.UserID1, f.UserID2, string(f.Status), f.RequesterID, f.RequestedAt,
		nullableStringPtr(f.RespondedAt), f.CreatedAt, f.UpdatedAt)
	return mapConstraint(err)
}

func (r Repo) GetFriendship(ctx context.Context, tx *sql.Tx, id string) (domain.Friendship, error) {
	return scanFriendship(r.q(tx).QueryRowContext(ctx, `SELECT `+friendshipColumns+` FROM friendships WHERE friendship_id=?`, id))
}

// FindFriendship looks up the relationship between a and b in either stored order.
func (r Repo) FindFriendship(ctx context.Context, tx *sql.Tx, a, b string) (domain.Friendship, error) {
	return scanFriendship(r.q(tx).QueryRowContext(ctx, `SELECT `+friendshipColumns+` FROM friendships
WHERE (user_id_1=? AND user_id_2=?) OR (user_id_1=? AND user_id_2=?) LIMIT 1`, a, b, b, a))
}

// ListFriendships returns the relationships involving userID, optionally
// restricted to one status.
func (r Repo) ListFriendships(ctx context.Context, userID string, status domain.FriendshipStatus) ([]domain.Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships WHERE (user_id_1=? OR user_id_2=?)`
	args := []any{userID, userID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY requested_at DESC, friendship_id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func (r Repo) UpdateFriendshipStatus(ctx context.Context, tx *sql.Tx, f domain.Friendship) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE friendships SET status=?, responded_at=?, updated_at=? WHERE friendship_id=?`,
		string(f.Status), nullableStringPtr(f.RespondedAt), f.UpdatedAt, f.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}
