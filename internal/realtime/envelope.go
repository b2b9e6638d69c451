// Package realtime carries matchmaking and 1:1 battles over websockets. The
// server side is Hub; Client and Battle are the matching client-side pieces.
package realtime

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	TypeInvite         MessageType = "invite"
	TypeInvitation     MessageType = "invitation"
	TypeJoin           MessageType = "join"
	TypeMatchConfirmed MessageType = "match_confirmed"
	TypeSelectTodo     MessageType = "select_todo"
	TypeGameStart      MessageType = "game_start"
	TypeChat           MessageType = "chat"
	TypeResult         MessageType = "result"
	TypeJama           MessageType = "jama"
	TypeFinish         MessageType = "finish"
	TypeError          MessageType = "error"
)

// SelfRegistration as an invite target binds hostId to the sending connection
// without inviting anyone.
const SelfRegistration = "SELF_REGISTRATION"

// Ack is the plain text frame acknowledging a self-registration.
const Ack = "OK"

const (
	ReasonCompleted = "completed"
	ReasonTimeout   = "timeout"
	ReasonAbandoned = "abandoned"
)

type Envelope struct {
	Type    MessageType     `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// NewEnvelope marshals content into an envelope of type t.
func NewEnvelope(t MessageType, content any) (Envelope, error) {
	if content == nil {
		return Envelope{Type: t}, nil
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s content: %w", t, err)
	}
	return Envelope{Type: t, Content: raw}, nil
}

// Decode unmarshals the envelope content into v. Empty content leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Content) == 0 || string(e.Content) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Content, v); err != nil {
		return fmt.Errorf("decode %s content: %w", e.Type, err)
	}
	return nil
}

// Text returns string content, as carried by chat and jama messages.
func (e Envelope) Text() string {
	var s string
	if err := json.Unmarshal(e.Content, &s); err != nil {
		return ""
	}
	return s
}

type InviteContent struct {
	TargetID string `json:"targetId"`
	HostID   string `json:"hostId"`
}

type InvitationContent struct {
	From string `json:"from"`
}

type JoinContent struct {
	HostID string `json:"hostId"`
}

type MatchConfirmedContent struct {
	OpponentID string `json:"opponentId"`
}

type SelectTodoContent struct {
	Title  string `json:"title"`
	TodoID string `json:"todoId"`
}

type GameStartContent struct {
	OpponentTodo    SelectTodoContent `json:"opponentTodo"`
	StartTime       int64             `json:"startTime"`
	DurationSeconds int               `json:"durationSeconds"`
}

type FinishContent struct {
	Completed bool `json:"completed,omitempty"`
}

// ResultContent ends a match. Winner is empty for a draw.
type ResultContent struct {
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason"`
}

type ErrorContent struct {
	Message string `json:"message"`
}
