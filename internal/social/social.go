// Package social implements the friendship request state machine.
package social

import (
	"errors"
	"strings"

	"taskjama/internal/domain"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends   = errors.New("already friends")
	ErrAlreadyRequested = errors.New("already requested")
	ErrTryAgainLater    = errors.New("try again later")
	ErrBlocked          = errors.New("relationship is blocked")
	ErrNotPending       = errors.New("friend request is not pending")
	ErrNotCounterparty  = errors.New("only the requested user can respond")
)

// Canonical orders a pair so the smaller id comes first.
func Canonical(a, b string) (string, string) {
	if strings.Compare(a, b) > 0 {
		return b, a
	}
	return a, b
}

// CheckRequest reports whether requester may open a request to target given
// the existing relationship of the pair, if any.
func CheckRequest(requester, target string, existing *domain.Friendship) error {
	if requester == target {
		return ErrSelfRequest
	}
	if existing == nil {
		return nil
	}
	switch existing.Status {
	case domain.FriendshipAccepted:
		return ErrAlreadyFriends
	case domain.FriendshipPending:
		return ErrAlreadyRequested
	case domain.FriendshipRejected:
		return ErrTryAgainLater
	case domain.FriendshipBlocked:
		return ErrBlocked
	}
	return nil
}

// NewRequest builds a PENDING relationship with the pair canonicalized.
func NewRequest(id, requester, target, now string) domain.Friendship {
	u1, u2 := Canonical(requester, target)
	return domain.Friendship{
		ID:          id,
		UserID1:     u1,
		UserID2:     u2,
		Status:      domain.FriendshipPending,
		RequesterID: requester,
		RequestedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Respond moves a PENDING relationship to ACCEPTED or REJECTED on behalf of
// the user who did not send the request.
func Respond(f domain.Friendship, actorID string, accept bool, now string) (domain.Friendship, error) {
	if f.Status != domain.FriendshipPending {
		return f, ErrNotPending
	}
	if !f.Involves(actorID) || f.RequesterID == actorID {
		return f, ErrNotCounterparty
	}
	if accept {
		f.Status = domain.FriendshipAccepted
	} else {
		f.Status = domain.FriendshipRejected
	}
	f.RespondedAt = &now
	f.UpdatedAt = now
	return f, nil
}
