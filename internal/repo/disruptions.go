package repo

import (
	"context"
	"database/sql"

	"taskjama/internal/domain"
)

func (r Repo) InsertDisruption(ctx context.Context, tx *sql.Tx, d domain.Disruption) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO disruptions(disruption_id,disruptor_id,target_todo_id,target_owner_id,points_spent,disruption_type,created_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.DisruptorID, d.TargetTodoID, d.TargetOwnerID, d.PointsSpent, d.Type, d.CreatedAt)
	return err
}

const disruptionColumns = `disruption_id,disruptor_id,target_todo_id,target_owner_id,points_spent,disruption_type,created_at`

// ListDisruptionsSent returns disruptions performed by userID, newest first.
func (r Repo) ListDisruptionsSent(ctx context.Context, userID string, limit int) ([]domain.Disruption, error) {
	return r.listDisruptions(ctx, `SELECT `+disruptionColumns+` FROM disruptions WHERE disruptor_id=? ORDER BY created_at DESC, disruption_id`, userID, limit)
}

// ListDisruptionsReceived returns disruptions applied to todos owned by
// userID, including todos deleted since.
func (r Repo) ListDisruptionsReceived(ctx context.Context, userID string, limit int) ([]domain.Disruption, error) {
	return r.listDisruptions(ctx, `SELECT `+disruptionColumns+` FROM disruptions WHERE target_owner_id=? ORDER BY created_at DESC, disruption_id`, userID, limit)
}

func (r Repo) listDisruptions(ctx context.Context, query, userID string, limit int) ([]domain.Disruption, error) {
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Disruption
	for rows.Next() {
		var d domain.Disruption
		if err := rows.Scan(&d.ID, &d.DisruptorID, &d.TargetTodoID, &d.TargetOwnerID, &d.PointsSpent, &d.Type, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
