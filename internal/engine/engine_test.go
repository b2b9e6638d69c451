package engine_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"taskjama/internal/config"
	"taskjama/internal/db"
	"taskjama/internal/domain"
	"taskjama/internal/engine"
	"taskjama/internal/engine/auth"
	"taskjama/internal/migrate"
	"taskjama/internal/points"
	"taskjama/internal/repo"
	"taskjama/internal/social"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	eng.Rand = rand.New(rand.NewPCG(1, 2))
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) user(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{ID: name, Email: name + "@example.com", Username: name})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (env testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	f, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: a, TargetID: b})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := env.Engine.AcceptFriend(env.Ctx, b, f.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func (env testEnv) setPoints(t *testing.T, userID string, pts int) {
	t.Helper()
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE users SET points=? WHERE user_id=?`, pts, userID); err != nil {
		t.Fatalf("set points: %v", err)
	}
}

func (env testEnv) countDisruptions(t *testing.T) int {
	t.Helper()
	var n int
	if err := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT COUNT(*) FROM disruptions`).Scan(&n); err != nil {
		t.Fatalf("count disruptions: %v", err)
	}
	return n
}

func TestRegisterUserStartsWithInitialPoints(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "alice")
	if u.Points != 100 {
		t.Fatalf("points = %d, want 100", u.Points)
	}
	if _, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{Email: "alice@example.com"}); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("duplicate email err = %v", err)
	}
	if _, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{Email: "nope"}); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("bad email err = %v", err)
	}
}

func TestCompleteTodoGrantsPointsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "alice", Title: "write report"})
	if err != nil {
		t.Fatal(err)
	}
	done, balance, err := env.Engine.CompleteTodo(env.Ctx, "alice", todo.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.IsCompleted || balance != 110 {
		t.Fatalf("completed=%v balance=%d", done.IsCompleted, balance)
	}
	if _, _, err := env.Engine.CompleteTodo(env.Ctx, "alice", todo.ID); !errors.Is(err, engine.ErrAlreadyCompleted) {
		t.Fatalf("second complete err = %v", err)
	}
	u, _ := env.Engine.GetUser(env.Ctx, "alice")
	if u.Points != 110 {
		t.Fatalf("points = %d, want 110", u.Points)
	}
}

func TestTodoOwnerChecks(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "alice", Title: "gym"})
	if err != nil {
		t.Fatal(err)
	}
	title := "skip gym"
	_, err = env.Engine.UpdateTodo(env.Ctx, engine.TodoUpdateOptions{UserID: "bob", TodoID: todo.ID, Title: &title})
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("update by non-owner err = %v", err)
	}
	if _, err := env.Engine.GetTodo(env.Ctx, "bob", todo.ID); !errors.As(err, &fe) {
		t.Fatalf("stranger view err = %v", err)
	}
	if err := env.Engine.DeleteTodo(env.Ctx, "bob", todo.ID); !errors.As(err, &fe) {
		t.Fatalf("delete by non-owner err = %v", err)
	}
	updated, err := env.Engine.UpdateTodo(env.Ctx, engine.TodoUpdateOptions{UserID: "alice", TodoID: todo.ID, Title: &title})
	if err != nil || updated.Title != "skip gym" {
		t.Fatalf("owner update: %v %q", err, updated.Title)
	}
	if err := env.Engine.DeleteTodo(env.Ctx, "alice", todo.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.GetTodo(env.Ctx, "alice", todo.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("get deleted err = %v", err)
	}
}

func TestSpendPoints(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	balance, err := env.Engine.SpendPoints(env.Ctx, "alice", 30, "test")
	if err != nil || balance != 70 {
		t.Fatalf("spend = %d, %v", balance, err)
	}
	if _, err := env.Engine.SpendPoints(env.Ctx, "alice", 71, "test"); !errors.Is(err, points.ErrInsufficientPoints) {
		t.Fatalf("overspend err = %v", err)
	}
	u, _ := env.Engine.GetUser(env.Ctx, "alice")
	if u.Points != 70 {
		t.Fatalf("points after refused spend = %d", u.Points)
	}
}

func TestConcurrentSpendsNeverGoNegative(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, refused := 0, 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.SpendPoints(env.Ctx, "alice", 60, "race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, points.ErrInsufficientPoints):
				refused++
			default:
				t.Errorf("spend: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || refused != 3 {
		t.Fatalf("ok=%d refused=%d", ok, refused)
	}
	u, _ := env.Engine.GetUser(env.Ctx, "alice")
	if u.Points != 40 {
		t.Fatalf("points = %d, want 40", u.Points)
	}
}

func TestDisruptRefusedWithoutEnoughPoints(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	env.befriend(t, "alice", "bob")
	todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "bob", Title: "finish thesis"})
	if err != nil {
		t.Fatal(err)
	}
	env.setPoints(t, "alice", 40)

	_, err = env.Engine.Disrupt(env.Ctx, engine.DisruptOptions{DisruptorID: "alice", TodoID: todo.ID})
	if !errors.Is(err, points.ErrInsufficientPoints) {
		t.Fatalf("disrupt err = %v", err)
	}
	u, _ := env.Engine.GetUser(env.Ctx, "alice")
	if u.Points != 40 {
		t.Fatalf("points = %d, want 40", u.Points)
	}
	if n := env.countDisruptions(t); n != 0 {
		t.Fatalf("disruptions = %d", n)
	}
	after, _ := env.Engine.Repo.GetTodo(env.Ctx, nil, todo.ID)
	if after.Title != "finish thesis" || after.IsDisguised {
		t.Fatalf("todo mutated: %+v", after)
	}
}

func TestDisruptSpendsExactlyAndCorrupts(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	env.befriend(t, "alice", "bob")
	todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "bob", Title: "finish thesis"})
	if err != nil {
		t.Fatal(err)
	}
	env.setPoints(t, "alice", 50)

	res, err := env.Engine.Disrupt(env.Ctx, engine.DisruptOptions{DisruptorID: "alice", TodoID: todo.ID})
	if err != nil {
		t.Fatalf("disrupt: %v", err)
	}
	if res.Balance != 0 {
		t.Fatalf("balance = %d, want 0", res.Balance)
	}
	if res.Disruption.PointsSpent != 50 || res.Disruption.Type != engine.DefaultDisruptionType {
		t.Fatalf("disruption = %+v", res.Disruption)
	}
	stored, _ := env.Engine.Repo.GetTodo(env.Ctx, nil, todo.ID)
	if stored.Title == "finish thesis" {
		t.Fatalf("title unchanged")
	}
	if utf8.RuneCountInString(stored.Title) != utf8.RuneCountInString("finish thesis") {
		t.Fatalf("length changed: %q", stored.Title)
	}
	if !stored.IsDisguised || stored.DisguisedBy == nil || *stored.DisguisedBy != "alice" || stored.DisruptionCount != 1 {
		t.Fatalf("disguise state = %+v", stored)
	}
	if len(stored.CorruptedPositions) == 0 {
		t.Fatalf("positions not persisted")
	}
	sent, _ := env.Engine.ListDisruptionsSent(env.Ctx, "alice", 0)
	received, _ := env.Engine.ListDisruptionsReceived(env.Ctx, "bob", 0)
	if len(sent) != 1 || len(received) != 1 || sent[0].ID != received[0].ID {
		t.Fatalf("sent=%v received=%v", sent, received)
	}
}

func TestDisruptCollapsesToPlaceholder(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	env.befriend(t, "alice", "bob")
	env.setPoints(t, "alice", 500)
	todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "bob", Title: "laundry"})
	if err != nil {
		t.Fatal(err)
	}
	var res engine.DisruptResult
	for i := 0; i < 3; i++ {
		res, err = env.Engine.Disrupt(env.Ctx, engine.DisruptOptions{DisruptorID: "alice", TodoID: todo.ID})
		if err != nil {
			t.Fatalf("disrupt %d: %v", i, err)
		}
	}
	if res.Todo.Title != env.Engine.Config.Mojibake.Placeholder {
		t.Fatalf("title = %q", res.Todo.Title)
	}
	if res.Balance != 350 {
		t.Fatalf("balance = %d", res.Balance)
	}
}

func TestDisruptRequiresFriendship(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "bob", Title: "call mom"})
	if err != nil {
		t.Fatal(err)
	}
	var fe auth.ForbiddenError
	if _, err := env.Engine.Disrupt(env.Ctx, engine.DisruptOptions{DisruptorID: "alice", TodoID: todo.ID}); !errors.As(err, &fe) {
		t.Fatalf("stranger disrupt err = %v", err)
	}
	if _, err := env.Engine.Disrupt(env.Ctx, engine.DisruptOptions{DisruptorID: "bob", TodoID: todo.ID}); !errors.As(err, &fe) {
		t.Fatalf("self disrupt err = %v", err)
	}
	u, _ := env.Engine.GetUser(env.Ctx, "alice")
	if u.Points != 100 {
		t.Fatalf("points = %d", u.Points)
	}
}

func TestFriendRequestAccept(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")

	f, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "alice", TargetEmail: "bob@example.com"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if f.Status != domain.FriendshipPending || f.UserID1 != "alice" || f.UserID2 != "bob" {
		t.Fatalf("friendship = %+v", f)
	}
	pending, err := env.Engine.ListPendingRequests(env.Ctx, "bob")
	if err != nil || len(pending) != 1 || pending[0].RequesterID != "alice" || pending[0].Email != "alice@example.com" {
		t.Fatalf("pending = %+v, %v", pending, err)
	}
	if mine, _ := env.Engine.ListPendingRequests(env.Ctx, "alice"); len(mine) != 0 {
		t.Fatalf("requester sees own request as pending: %+v", mine)
	}
	if _, err := env.Engine.AcceptFriend(env.Ctx, "alice", f.ID); !errors.Is(err, social.ErrNotCounterparty) {
		t.Fatalf("requester accept err = %v", err)
	}
	accepted, err := env.Engine.AcceptFriend(env.Ctx, "bob", f.ID)
	if err != nil || accepted.Status != domain.FriendshipAccepted || accepted.RespondedAt == nil {
		t.Fatalf("accept = %+v, %v", accepted, err)
	}
	af, _ := env.Engine.ListFriends(env.Ctx, "alice")
	bf, _ := env.Engine.ListFriends(env.Ctx, "bob")
	if len(af) != 1 || af[0].UserID != "bob" || len(bf) != 1 || bf[0].UserID != "alice" {
		t.Fatalf("friends alice=%v bob=%v", af, bf)
	}
	if _, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "bob", TargetID: "alice"}); !errors.Is(err, social.ErrAlreadyFriends) {
		t.Fatalf("request after accept err = %v", err)
	}
}

func TestDuplicateRequestEitherOrder(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	if _, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "bob", TargetID: "alice"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "bob", TargetID: "alice"}); !errors.Is(err, social.ErrAlreadyRequested) {
		t.Fatalf("same order err = %v", err)
	}
	if _, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "alice", TargetID: "bob"}); !errors.Is(err, social.ErrAlreadyRequested) {
		t.Fatalf("reverse order err = %v", err)
	}
}

func TestRejectedRequestAsksToRetryLater(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	f, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "alice", TargetID: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RejectFriend(env.Ctx, "bob", f.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "alice", TargetID: "bob"}); !errors.Is(err, social.ErrTryAgainLater) {
		t.Fatalf("re-request err = %v", err)
	}
	if friends, _ := env.Engine.ListFriends(env.Ctx, "alice"); len(friends) != 0 {
		t.Fatalf("friends = %v", friends)
	}
}

func TestFriendTodosGated(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	if _, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "bob", Title: "secret plan"}); err != nil {
		t.Fatal(err)
	}
	var fe auth.ForbiddenError
	if _, err := env.Engine.ListFriendTodos(env.Ctx, "alice", "bob"); !errors.As(err, &fe) {
		t.Fatalf("gated err = %v", err)
	}
	env.befriend(t, "bob", "alice")
	todos, err := env.Engine.ListFriendTodos(env.Ctx, "alice", "bob")
	if err != nil || len(todos) != 1 {
		t.Fatalf("friend todos = %v, %v", todos, err)
	}
}

func TestMutationsAppendEvents(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	env.befriend(t, "alice", "bob")
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, repo.EventFilters{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"friend.accepted", "friend.requested", "user.registered", "user.registered"}
	if len(evts) != len(want) {
		t.Fatalf("events = %d, want %d", len(evts), len(want))
	}
	for i, e := range evts {
		if e.Type != want[i] {
			t.Fatalf("event[%d] = %s, want %s", i, e.Type, want[i])
		}
	}
}

func TestDeleteTodoKeepsDisruptionLog(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	env.befriend(t, "alice", "bob")
	todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "bob", Title: "finish thesis"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.Disrupt(env.Ctx, engine.DisruptOptions{DisruptorID: "alice", TodoID: todo.ID})
	if err != nil {
		t.Fatalf("disrupt: %v", err)
	}
	if res.Disruption.TargetOwnerID != "bob" {
		t.Fatalf("owner = %q", res.Disruption.TargetOwnerID)
	}
	if err := env.Engine.DeleteTodo(env.Ctx, "bob", todo.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if n := env.countDisruptions(t); n != 1 {
		t.Fatalf("disruptions after delete = %d, want 1", n)
	}
	sent, err := env.Engine.ListDisruptionsSent(env.Ctx, "alice", 0)
	if err != nil || len(sent) != 1 || sent[0].TargetTodoID != todo.ID || sent[0].PointsSpent != 50 {
		t.Fatalf("sent = %+v, %v", sent, err)
	}
	received, err := env.Engine.ListDisruptionsReceived(env.Ctx, "bob", 0)
	if err != nil || len(received) != 1 || received[0].ID != res.Disruption.ID {
		t.Fatalf("received = %+v, %v", received, err)
	}
}

func TestConcurrentDisruptsNeverGoNegative(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Rand = nil
	env.user(t, "alice")
	env.user(t, "bob")
	env.befriend(t, "alice", "bob")
	env.setPoints(t, "alice", 60)
	todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: "bob", Title: "finish thesis"})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, refused := 0, 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.Disrupt(env.Ctx, engine.DisruptOptions{DisruptorID: "alice", TodoID: todo.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, points.ErrInsufficientPoints):
				refused++
			default:
				t.Errorf("disrupt: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || refused != 1 {
		t.Fatalf("ok=%d refused=%d", ok, refused)
	}
	if n := env.countDisruptions(t); n != 1 {
		t.Fatalf("disruptions = %d, want 1", n)
	}
	u, _ := env.Engine.GetUser(env.Ctx, "alice")
	if u.Points != 10 {
		t.Fatalf("points = %d, want 10", u.Points)
	}
	stored, _ := env.Engine.Repo.GetTodo(env.Ctx, nil, todo.ID)
	if stored.DisruptionCount != 1 {
		t.Fatalf("disruption count = %d, want 1", stored.DisruptionCount)
	}
}

func TestEmailUniqueIgnoresCase(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	bob, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{Email: "bob@example.com", Username: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{Email: "Bob@Example.com"}); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("mixed-case duplicate err = %v", err)
	}
	f, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "alice", TargetEmail: "BOB@example.com"})
	if err != nil {
		t.Fatalf("request by email: %v", err)
	}
	if f.Counterparty("alice") != bob.ID {
		t.Fatalf("request went to %s, want %s", f.Counterparty("alice"), bob.ID)
	}
}

func TestListFriendOverdueTodos(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice")
	env.user(t, "bob")
	env.user(t, "carol")
	env.user(t, "dave")
	env.befriend(t, "alice", "bob")
	env.befriend(t, "carol", "alice")
	if _, err := env.Engine.RequestFriend(env.Ctx, engine.FriendRequestOptions{RequesterID: "dave", TargetID: "alice"}); err != nil {
		t.Fatal(err)
	}
	add := func(owner, title, due string) domain.Todo {
		t.Helper()
		todo, err := env.Engine.CreateTodo(env.Ctx, engine.TodoCreateOptions{UserID: owner, Title: title, DueDate: due})
		if err != nil {
			t.Fatal(err)
		}
		return todo
	}
	// today is 2024-01-01
	add("bob", "bob late", "2023-12-20")
	add("carol", "carol later", "2023-12-30")
	add("bob", "bob due today", "2024-01-01")
	add("bob", "bob no due", "")
	done := add("carol", "carol finished", "2023-11-01")
	if _, _, err := env.Engine.CompleteTodo(env.Ctx, "carol", done.ID); err != nil {
		t.Fatal(err)
	}
	add("dave", "dave pending friend", "2023-10-01")
	add("alice", "alice own", "2023-10-01")

	feed, err := env.Engine.ListFriendOverdueTodos(env.Ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 2 {
		t.Fatalf("feed = %+v", feed)
	}
	if feed[0].Title != "bob late" || feed[0].Username != "bob" || feed[1].Title != "carol later" || feed[1].Username != "carol" {
		t.Fatalf("feed order = %+v", feed)
	}

	for i := 0; i < engine.OverdueFeedLimit+2; i++ {
		add("bob", "backlog", "2023-06-01")
	}
	feed, err = env.Engine.ListFriendOverdueTodos(env.Ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != engine.OverdueFeedLimit {
		t.Fatalf("feed len = %d, want %d", len(feed), engine.OverdueFeedLimit)
	}
	if _, err := env.Engine.ListFriendOverdueTodos(env.Ctx, "nobody"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}
}
