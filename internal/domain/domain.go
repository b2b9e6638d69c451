package domain

type User struct {
	ID        string `json:"user_id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Points    int    `json:"points"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Todo struct {
	ID                 string  `json:"todo_id"`
	UserID             string  `json:"user_id"`
	Title              string  `json:"title"`
	Description        string  `json:"description,omitempty"`
	IsCompleted        bool    `json:"is_completed"`
	IsDisguised        bool    `json:"is_disguised"`
	DisguisedBy        *string `json:"disguised_by,omitempty"`
	DisruptionCount    int     `json:"disruption_count"`
	CorruptedPositions []int   `json:"-"`
	DeadlineAt         *string `json:"deadline_at,omitempty" format:"date-time"`
	DueDate            *string `json:"due_date,omitempty" format:"date"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	UpdatedAt          string  `json:"updated_at" format:"date-time"`
}

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "PENDING"
	FriendshipAccepted FriendshipStatus = "ACCEPTED"
	FriendshipRejected FriendshipStatus = "REJECTED"
	FriendshipBlocked  FriendshipStatus = "BLOCKED"
)

// Friendship is stored with UserID1 < UserID2.
type Friendship struct {
	ID          string           `json:"friendship_id"`
	UserID1     string           `json:"user_id_1"`
	UserID2     string           `json:"user_id_2"`
	Status      FriendshipStatus `json:"status" enum:"PENDING,ACCEPTED,REJECTED,BLOCKED"`
	RequesterID string           `json:"requester_id"`
	RequestedAt string           `json:"requested_at" format:"date-time"`
	RespondedAt *string          `json:"responded_at,omitempty" format:"date-time"`
	CreatedAt   string           `json:"created_at" format:"date-time"`
	UpdatedAt   string           `json:"updated_at" format:"date-time"`
}

// Counterparty returns the member of the pair that is not userID.
func (f Friendship) Counterparty(userID string) string {
	if f.UserID1 == userID {
		return f.UserID2
	}
	return f.UserID1
}

// Involves reports whether userID is one of the pair.
func (f Friendship) Involves(userID string) bool {
	return f.UserID1 == userID || f.UserID2 == userID
}

type Disruption struct {
	ID           string `json:"disruption_id"`
	DisruptorID  string `json:"disruptor_id"`
	TargetTodoID string `json:"target_todo_id"`
	// TargetOwnerID is the todo owner at the time of the disruption.
	TargetOwnerID string `json:"target_owner_id"`
	PointsSpent  int    `json:"points_spent"`
	Type         string `json:"disruption_type"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Friend is an accepted counterparty as shown in a friend list.
type Friend struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// OverdueTodo is an unfinished friend todo past its due date, shown in the
// friends' news feed.
type OverdueTodo struct {
	Todo
	Username string `json:"username"`
}

// PendingRequest is an incoming friend request awaiting a response.
type PendingRequest struct {
	FriendshipID string `json:"friendship_id"`
	RequesterID  string `json:"requester_id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	RequestedAt  string `json:"requested_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
