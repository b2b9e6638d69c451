package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"taskjama/internal/domain"
	"taskjama/internal/events"
	"taskjama/internal/repo"
	"taskjama/internal/social"
)

// FriendRequestOptions names the target by id or, failing that, by email.
type FriendRequestOptions struct {
	RequesterID string
	TargetID    string
	TargetEmail string
}

func (e Engine) RequestFriend(ctx context.Context, opts FriendRequestOptions) (domain.Friendship, error) {
	if opts.TargetID == "" && opts.TargetEmail == "" {
		return domain.Friendship{}, invalid("target user id or email is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Friendship{}, err
	}
	defer tx.Rollback()

	var target domain.User
	if opts.TargetID != "" {
		target, err = e.Repo.GetUser(ctx, tx, opts.TargetID)
	} else {
		target, err = e.Repo.GetUserByEmail(ctx, tx, opts.TargetEmail)
	}
	if err != nil {
		return domain.Friendship{}, fmt.Errorf("target user: %w", err)
	}
	var existing *domain.Friendship
	f, err := e.Repo.FindFriendship(ctx, tx, opts.RequesterID, target.ID)
	switch {
	case err == nil:
		existing = &f
	case !errors.Is(err, repo.ErrNotFound):
		return domain.Friendship{}, err
	}
	if err := social.CheckRequest(opts.RequesterID, target.ID, existing); err != nil {
		return domain.Friendship{}, err
	}
	req := social.NewRequest(uuid.NewString(), opts.RequesterID, target.ID, e.stamp())
	if err := e.Repo.InsertFriendship(ctx, tx, req); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.Friendship{}, social.ErrAlreadyRequested
		}
		return domain.Friendship{}, fmt.Errorf("insert friendship: %w", err)
	}
	if err := e.eventLog().Append(ctx, tx, events.FriendRequested, "friendship", req.ID, opts.RequesterID, events.EventPayload{"target_id": target.ID}); err != nil {
		return domain.Friendship{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Friendship{}, err
	}
	return req, nil
}

func (e Engine) AcceptFriend(ctx context.Context, userID, friendshipID string) (domain.Friendship, error) {
	return e.respond(ctx, userID, friendshipID, true)
}

func (e Engine) RejectFriend(ctx context.Context, userID, friendshipID string) (domain.Friendship, error) {
	return e.respond(ctx, userID, friendshipID, false)
}

func (e Engine) respond(ctx context.Context, userID, friendshipID string, accept bool) (domain.Friendship, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Friendship{}, err
	}
	defer tx.Rollback()

	f, err := e.Repo.GetFriendship(ctx, tx, friendshipID)
	if err != nil {
		return domain.Friendship{}, err
	}
	f, err = social.Respond(f, userID, accept, e.stamp())
	if err != nil {
		return domain.Friendship{}, err
	}
	if err := e.Repo.UpdateFriendshipStatus(ctx, tx, f); err != nil {
		return domain.Friendship{}, err
	}
	evt := events.FriendRejected
	if accept {
		evt = events.FriendAccepted
	}
	if err := e.eventLog().Append(ctx, tx, evt, "friendship", f.ID, userID, events.EventPayload{"requester_id": f.RequesterID}); err != nil {
		return domain.Friendship{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Friendship{}, err
	}
	return f, nil
}

// ListFriends returns the accepted counterparties of userID ordered by username.
func (e Engine) ListFriends(ctx context.Context, userID string) ([]domain.Friend, error) {
	rels, err := e.Repo.ListFriendships(ctx, userID, domain.FriendshipAccepted)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rels))
	for _, f := range rels {
		ids = append(ids, f.Counterparty(userID))
	}
	users, err := e.Repo.ListUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Friend, 0, len(ids))
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		res = append(res, domain.Friend{UserID: u.ID, Username: u.Username})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Username < res[j].Username })
	return res, nil
}

// ListPendingRequests returns requests awaiting a response from userID.
func (e Engine) ListPendingRequests(ctx context.Context, userID string) ([]domain.PendingRequest, error) {
	rels, err := e.Repo.ListFriendships(ctx, userID, domain.FriendshipPending)
	if err != nil {
		return nil, err
	}
	var incoming []domain.Friendship
	var ids []string
	for _, f := range rels {
		if f.RequesterID == userID {
			continue
		}
		incoming = append(incoming, f)
		ids = append(ids, f.RequesterID)
	}
	users, err := e.Repo.ListUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	res := make([]domain.PendingRequest, 0, len(incoming))
	for _, f := range incoming {
		u := users[f.RequesterID]
		res = append(res, domain.PendingRequest{
			FriendshipID: f.ID,
			RequesterID:  f.RequesterID,
			Username:     u.Username,
			Email:        u.Email,
			RequestedAt:  f.RequestedAt,
		})
	}
	return res, nil
}

// ListFriendTodos returns friendID's todos if the two are accepted friends.
func (e Engine) ListFriendTodos(ctx context.Context, userID, friendID string) ([]domain.Todo, error) {
	if err := e.Auth.RequireFriends(ctx, nil, "friend.todos", userID, friendID); err != nil {
		return nil, err
	}
	return e.Repo.ListTodos(ctx, repo.TodoFilters{UserID: friendID})
}

// OverdueFeedLimit caps the friends' overdue feed.
const OverdueFeedLimit = 8

// ListFriendOverdueTodos returns the friends' news feed: accepted friends'
// unfinished todos whose due date is before today.
func (e Engine) ListFriendOverdueTodos(ctx context.Context, userID string) ([]domain.OverdueTodo, error) {
	if _, err := e.Repo.GetUser(ctx, nil, userID); err != nil {
		return nil, err
	}
	return e.Repo.ListOverdueFriendTodos(ctx, userID, e.now().Format(time.DateOnly), OverdueFeedLimit)
}
