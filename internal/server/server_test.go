package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"taskjama/internal/commentary"
	"taskjama/internal/config"
	"taskjama/internal/db"
	"taskjama/internal/domain"
	"taskjama/internal/engine"
	"taskjama/internal/migrate"
	"taskjama/internal/realtime"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, opts ...func(*Config)) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	serverCfg := Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{AllowLegacyUserHeader: true},
	}
	for _, opt := range opts {
		opt(&serverCfg)
	}
	handler, err := New(serverCfg)
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			if serverCfg.Hub != nil {
				serverCfg.Hub.Close()
			}
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func as(userID string) map[string]string {
	return map[string]string{"X-User-Id": userID}
}

func registerUser(t *testing.T, srv *testServer, email, username string) RegisterResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/users", map[string]any{
		"email":    email,
		"username": username,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: %d %s", email, res.StatusCode, string(data))
	}
	var out RegisterResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal register: %v", err)
	}
	return out
}

func createTodo(t *testing.T, srv *testServer, userID, title string) domain.Todo {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/todos", map[string]any{"title": title}, as(userID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create todo: %d %s", res.StatusCode, string(data))
	}
	var todo domain.Todo
	if err := json.Unmarshal(data, &todo); err != nil {
		t.Fatalf("unmarshal todo: %v", err)
	}
	return todo
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error.Code
}

func befriend(t *testing.T, srv *testServer, a, b domain.User) {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/friends/requests", map[string]any{"email": b.Email}, as(a.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("friend request: %d %s", res.StatusCode, string(data))
	}
	var f domain.Friendship
	_ = json.Unmarshal(data, &f)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/friends/requests/"+f.ID+"/accept", nil, as(b.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", res.StatusCode, string(data))
	}
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", code)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/payment-link", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without payment link, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "bearerAuth") {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
}

func TestPaymentLinkConfigured(t *testing.T) {
	srv, cleanup := newTestServer(t, func(c *Config) {
		c.Engine.Config.Payment.Link = "https://pay.example.com/jama"
	})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/payment-link", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("payment link: %d %s", res.StatusCode, string(data))
	}
	var out PaymentLinkResponse
	_ = json.Unmarshal(data, &out)
	if out.URL != "https://pay.example.com/jama" {
		t.Fatalf("unexpected url %q", out.URL)
	}
}

func TestTokenAndAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t, func(c *Config) {
		c.Auth = AuthConfig{JWTSecret: "test-secret"}
	})
	defer cleanup()
	client := srv.Client()

	reg := registerUser(t, srv, "alice@example.com", "alice")
	if reg.Token == "" {
		t.Fatalf("expected token on registration")
	}
	bearer := map[string]string{"Authorization": "Bearer " + reg.Token}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, bearer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me with token: %d %s", res.StatusCode, string(data))
	}
	var me domain.User
	_ = json.Unmarshal(data, &me)
	if me.ID != reg.User.ID || me.Points != 100 {
		t.Fatalf("unexpected me %+v", me)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/me/api-keys", map[string]any{"name": "cli"}, bearer)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var key APIKeyResponse
	_ = json.Unmarshal(data, &key)
	if !strings.HasPrefix(key.Key, "tj_") {
		t.Fatalf("unexpected key %q", key.Key)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me with api key: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me/api-keys", nil, bearer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list keys: %d %s", res.StatusCode, string(data))
	}
	var keys []APIKeyResponse
	_ = json.Unmarshal(data, &keys)
	if len(keys) != 1 || keys[0].Key != "" {
		t.Fatalf("listed keys must not expose the secret: %+v", keys)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, as(reg.User.ID))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("legacy header must be refused when disabled, got %d", res.StatusCode)
	}
}

func TestCompleteTodoAwardsPointsOnce(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	alice := registerUser(t, srv, "alice@example.com", "alice").User
	todo := createTodo(t, srv, alice.ID, "file taxes")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/todos/"+todo.ID+"/complete", nil, as(alice.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d %s", res.StatusCode, string(data))
	}
	var done CompleteTodoResponse
	_ = json.Unmarshal(data, &done)
	if !done.Todo.IsCompleted || done.Points != 110 {
		t.Fatalf("unexpected completion %+v", done)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/todos/"+todo.ID+"/complete", nil, as(alice.ID))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict on second completion, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/todos?completed=false", nil, as(alice.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list todos: %d %s", res.StatusCode, string(data))
	}
	var open []domain.Todo
	_ = json.Unmarshal(data, &open)
	if len(open) != 0 {
		t.Fatalf("expected no open todos, got %d", len(open))
	}
}

func TestFriendshipAndDisruptionFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	alice := registerUser(t, srv, "alice@example.com", "alice").User
	bob := registerUser(t, srv, "bob@example.com", "bob").User
	todo := createTodo(t, srv, bob.ID, "write quarterly report")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/disruptions", map[string]any{"todo_id": todo.ID}, as(alice.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("strangers must not disrupt, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/friends/"+bob.ID+"/todos", nil, as(alice.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("strangers must not list todos, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/friends/requests", map[string]any{"user_id": bob.ID}, as(alice.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("friend request: %d %s", res.StatusCode, string(data))
	}
	var f domain.Friendship
	_ = json.Unmarshal(data, &f)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/friends/requests", map[string]any{"user_id": alice.ID}, as(bob.ID))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "already_requested" {
		t.Fatalf("expected already_requested, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/friends/requests/"+f.ID+"/accept", nil, as(alice.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("requester must not accept, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/friends/requests", nil, as(bob.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pending: %d %s", res.StatusCode, string(data))
	}
	var pending []domain.PendingRequest
	_ = json.Unmarshal(data, &pending)
	if len(pending) != 1 || pending[0].RequesterID != alice.ID {
		t.Fatalf("unexpected pending %+v", pending)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/friends/requests/"+f.ID+"/accept", nil, as(bob.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/friends", nil, as(alice.ID))
	var friends []domain.Friend
	_ = json.Unmarshal(data, &friends)
	if res.StatusCode != http.StatusOK || len(friends) != 1 || friends[0].UserID != bob.ID {
		t.Fatalf("friends: %d %s", res.StatusCode, string(data))
	}

	balances := []int{50, 0}
	for _, want := range balances {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/disruptions", map[string]any{"todo_id": todo.ID}, as(alice.ID))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("disrupt: %d %s", res.StatusCode, string(data))
		}
		var out engine.DisruptResult
		_ = json.Unmarshal(data, &out)
		if out.Balance != want {
			t.Fatalf("expected balance %d, got %d", want, out.Balance)
		}
		if out.Todo.Title == todo.Title || utf8.RuneCountInString(out.Todo.Title) != utf8.RuneCountInString(todo.Title) {
			t.Fatalf("unexpected corrupted title %q", out.Todo.Title)
		}
		if !out.Todo.IsDisguised || out.Disruption.PointsSpent != 50 {
			t.Fatalf("unexpected disruption %+v", out)
		}
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/disruptions", map[string]any{"todo_id": todo.ID}, as(alice.ID))
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "insufficient_points" {
		t.Fatalf("expected insufficient_points, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/disruptions/received", nil, as(bob.ID))
	var received []domain.Disruption
	_ = json.Unmarshal(data, &received)
	if res.StatusCode != http.StatusOK || len(received) != 2 {
		t.Fatalf("received: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?type=todo.disrupted", nil, as(alice.ID))
	var evts EventsResponse
	_ = json.Unmarshal(data, &evts)
	if res.StatusCode != http.StatusOK || len(evts.Items) != 2 {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
}

func TestFriendOverdueFeed(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := registerUser(t, srv, "alice@example.com", "alice").User
	bob := registerUser(t, srv, "bob@example.com", "bob").User

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/friends/overdue", nil, as(alice.ID))
	if res.StatusCode != http.StatusOK || strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("empty feed: %d %s", res.StatusCode, string(data))
	}

	befriend(t, srv, alice, bob)
	for _, body := range []map[string]any{
		{"title": "renew passport", "due_date": "2000-01-01"},
		{"title": "plan trip", "due_date": "2999-01-01"},
		{"title": "someday"},
	} {
		if res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/todos", body, as(bob.ID)); res.StatusCode != http.StatusCreated {
			t.Fatalf("create todo: %d %s", res.StatusCode, string(data))
		}
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/friends/overdue", nil, as(alice.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("feed: %d %s", res.StatusCode, string(data))
	}
	var feed []domain.OverdueTodo
	if err := json.Unmarshal(data, &feed); err != nil {
		t.Fatalf("unmarshal feed: %v", err)
	}
	if len(feed) != 1 || feed[0].Title != "renew passport" || feed[0].Username != "bob" || feed[0].UserID != bob.ID {
		t.Fatalf("feed = %+v", feed)
	}
}

func TestCommentaryFallsBackWithoutService(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := registerUser(t, srv, "alice@example.com", "alice").User
	todo := createTodo(t, srv, alice.ID, "clean desk")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/commentary/criticism", map[string]any{"todo_id": todo.ID}, as(alice.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("criticism: %d %s", res.StatusCode, string(data))
	}
	var out CommentaryResponse
	_ = json.Unmarshal(data, &out)
	if out.Message == "" {
		t.Fatalf("expected fallback message")
	}
}

func TestCriticismWithOpenTodos(t *testing.T) {
	var mu sync.Mutex
	var got struct {
		TargetTodo commentary.TodoLite   `json:"targetTodo"`
		OtherTodos []commentary.TodoLite `json:"otherTodos"`
	}
	ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte("too many plans"))
	}))
	defer ai.Close()
	srv, cleanup := newTestServer(t, func(c *Config) { c.Commentary = commentary.New(ai.URL) })
	defer cleanup()
	alice := registerUser(t, srv, "alice@example.com", "alice").User
	target := createTodo(t, srv, alice.ID, "clean desk")
	createTodo(t, srv, alice.ID, "file taxes")
	done := createTodo(t, srv, alice.ID, "water plants")
	if res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/todos/"+done.ID+"/complete", nil, as(alice.ID)); res.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d %s", res.StatusCode, string(data))
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/commentary/criticism",
		map[string]any{"todo_id": target.ID, "with_open_todos": true}, as(alice.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("criticism: %d %s", res.StatusCode, string(data))
	}
	var out CommentaryResponse
	_ = json.Unmarshal(data, &out)
	if out.Message != "too many plans" {
		t.Fatalf("message = %q", out.Message)
	}
	mu.Lock()
	defer mu.Unlock()
	if got.TargetTodo.Title != "clean desk" || len(got.OtherTodos) != 1 || got.OtherTodos[0].Title != "file taxes" {
		t.Fatalf("batch body = %+v", got)
	}
}

func TestWebSocketMounted(t *testing.T) {
	hub := realtime.NewHub()
	srv, cleanup := newTestServer(t, func(c *Config) { c.Hub = hub })
	defer cleanup()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	env, err := realtime.NewEnvelope(realtime.TypeInvite, realtime.InviteContent{TargetID: realtime.SelfRegistration, HostID: "alice"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil || string(data) != realtime.Ack {
		t.Fatalf("expected ack, got %q (%v)", data, err)
	}
}

func TestWebhookDeliversMatchingEvents(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	type delivery struct {
		header http.Header
		body   webhookEvent
	}
	var mu sync.Mutex
	var got []delivery
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		got = append(got, delivery{header: r.Header.Clone(), body: evt})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer receiver.Close()

	ctx := context.Background()
	alice, err := srv.Engine.RegisterUser(ctx, engine.RegisterOptions{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewWebhookDispatcher(srv.Engine.Repo, []config.WebhookConfig{{
		URL:    receiver.URL,
		Events: []string{"todo.*"},
		Secret: "s3cret",
	}}, nil)
	d.Interval = 20 * time.Millisecond
	// pin the cursor before new events arrive
	d.cursorFor(ctx, 0)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- d.Run(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	if _, err := srv.Engine.CreateTodo(ctx, engine.TodoCreateOptions{UserID: alice.ID, Title: "stretch"}); err != nil {
		t.Fatalf("create todo: %v", err)
	}
	if _, err := srv.Engine.GainPoints(ctx, alice.ID, 5, "bonus"); err != nil {
		t.Fatalf("gain: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	// give a stray non-matching delivery a chance to show up
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(got))
	}
	if got[0].body.Type != "todo.created" || got[0].header.Get("X-Taskjama-Event") != "todo.created" {
		t.Fatalf("unexpected delivery %+v", got[0].body)
	}
	if got[0].header.Get("X-Taskjama-Secret") != "s3cret" {
		t.Fatalf("secret header missing")
	}
}

func TestEventFilter(t *testing.T) {
	cases := []struct {
		events []string
		typ    string
		want   bool
	}{
		{nil, "todo.created", true},
		{[]string{"*"}, "user.registered", true},
		{[]string{"todo.*"}, "todo.disrupted", true},
		{[]string{"todo.*"}, "points.spent", false},
		{[]string{"friend.accepted", " "}, "friend.accepted", true},
		{[]string{"friend.accepted"}, "friend.rejected", false},
	}
	for _, tc := range cases {
		if got := newEventFilter(tc.events).match(tc.typ); got != tc.want {
			t.Fatalf("filter %v match %s = %v, want %v", tc.events, tc.typ, got, tc.want)
		}
	}
}
