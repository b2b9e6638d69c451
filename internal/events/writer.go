package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event types written by the engine. Webhook filters match against these.
const (
	UserRegistered = "user.registered"
	PointsGained   = "points.gained"
	PointsSpent    = "points.spent"
	APIKeyCreated  = "apikey.created"

	TodoCreated   = "todo.created"
	TodoUpdated   = "todo.updated"
	TodoDeleted   = "todo.deleted"
	TodoCompleted = "todo.completed"
	TodoDisrupted = "todo.disrupted"

	FriendRequested = "friend.requested"
	FriendAccepted  = "friend.accepted"
	FriendRejected  = "friend.rejected"
)

var errNoType = errors.New("event type is required")

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event in tx. The row commits or rolls back with the
// mutation it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if evtType == "" {
		return errNoType
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evtType, err)
	}
	var entity any
	if entityID != "" {
		entity = entityID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, entityKind, entity, actorID, string(data),
	); err != nil {
		return fmt.Errorf("append %s: %w", evtType, err)
	}
	return nil
}
