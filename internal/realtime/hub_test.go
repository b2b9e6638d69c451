package realtime

import (
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHubServer(t *testing.T, opts ...HubOption) (*Hub, string) {
	t.Helper()
	hub := NewHub(opts...)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEnv(t *testing.T, conn *websocket.Conn, typ MessageType, content any) {
	t.Helper()
	env, err := NewEnvelope(typ, content)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

// register connects userID and waits for the acknowledgement.
func register(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	conn := dial(t, url)
	sendEnv(t, conn, TypeInvite, InviteContent{TargetID: SelfRegistration, HostID: userID})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, Ack, string(data))
	return conn
}

func readEnv(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if string(data) == Ack {
			continue
		}
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	}
}

func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, data, err := conn.ReadMessage()
	var ne net.Error
	require.True(t, errors.As(err, &ne) && ne.Timeout(), "unexpected frame %q (err %v)", data, err)
}

func pair(t *testing.T, url string) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	alice := register(t, url, "alice")
	bob := register(t, url, "bob")
	sendEnv(t, alice, TypeInvite, InviteContent{TargetID: "bob", HostID: "alice"})
	require.Equal(t, TypeInvitation, readEnv(t, bob).Type)
	sendEnv(t, bob, TypeJoin, JoinContent{HostID: "alice"})
	require.Equal(t, TypeMatchConfirmed, readEnv(t, alice).Type)
	require.Equal(t, TypeMatchConfirmed, readEnv(t, bob).Type)
	return alice, bob
}

func start(t *testing.T, alice, bob *websocket.Conn) {
	t.Helper()
	sendEnv(t, alice, TypeSelectTodo, SelectTodoContent{Title: "run 5k", TodoID: "t-a"})
	sendEnv(t, bob, TypeSelectTodo, SelectTodoContent{Title: "read a book", TodoID: "t-b"})
	var gs GameStartContent
	env := readEnv(t, alice)
	require.Equal(t, TypeGameStart, env.Type)
	require.NoError(t, env.Decode(&gs))
	assert.Equal(t, "read a book", gs.OpponentTodo.Title)
	env = readEnv(t, bob)
	require.Equal(t, TypeGameStart, env.Type)
	require.NoError(t, env.Decode(&gs))
	assert.Equal(t, "run 5k", gs.OpponentTodo.Title)
}

func TestInvitationReachesOnlyTarget(t *testing.T) {
	_, url := newHubServer(t)
	alice := register(t, url, "alice")
	bob := register(t, url, "bob")
	carol := register(t, url, "carol")

	sendEnv(t, alice, TypeInvite, InviteContent{TargetID: "bob", HostID: "alice"})

	env := readEnv(t, bob)
	require.Equal(t, TypeInvitation, env.Type)
	var inv InvitationContent
	require.NoError(t, env.Decode(&inv))
	assert.Equal(t, "alice", inv.From)

	expectSilence(t, carol, 200*time.Millisecond)
	expectSilence(t, alice, 50*time.Millisecond)
}

func TestInviteOfflineUserReportsError(t *testing.T) {
	_, url := newHubServer(t)
	alice := register(t, url, "alice")
	sendEnv(t, alice, TypeInvite, InviteContent{TargetID: "ghost", HostID: "alice"})
	assert.Equal(t, TypeError, readEnv(t, alice).Type)
}

func TestJoinRequiresInvitation(t *testing.T) {
	_, url := newHubServer(t)
	register(t, url, "alice")
	bob := register(t, url, "bob")
	sendEnv(t, bob, TypeJoin, JoinContent{HostID: "alice"})
	assert.Equal(t, TypeError, readEnv(t, bob).Type)
}

func TestMatchFlowCompletedWins(t *testing.T) {
	_, url := newHubServer(t)
	alice, bob := pair(t, url)
	start(t, alice, bob)

	sendEnv(t, alice, TypeChat, "you're going down")
	env := readEnv(t, bob)
	require.Equal(t, TypeChat, env.Type)
	assert.Equal(t, "you're going down", env.Text())

	sendEnv(t, bob, TypeJama, "mojibake!")
	env = readEnv(t, alice)
	require.Equal(t, TypeJama, env.Type)
	assert.Equal(t, "mojibake!", env.Text())

	sendEnv(t, alice, TypeFinish, FinishContent{Completed: true})
	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readEnv(t, conn)
		require.Equal(t, TypeResult, env.Type)
		var res ResultContent
		require.NoError(t, env.Decode(&res))
		assert.Equal(t, ResultContent{Winner: "alice", Reason: ReasonCompleted}, res)
	}
}

func TestMatchTimesOutAsDraw(t *testing.T) {
	_, url := newHubServer(t, WithBattleDuration(150*time.Millisecond))
	alice, bob := pair(t, url)
	start(t, alice, bob)
	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readEnv(t, conn)
		require.Equal(t, TypeResult, env.Type)
		var res ResultContent
		require.NoError(t, env.Decode(&res))
		assert.Equal(t, ReasonTimeout, res.Reason)
		assert.Empty(t, res.Winner)
	}
}

func TestDisconnectAbandonsMatch(t *testing.T) {
	hub, url := newHubServer(t)
	alice, bob := pair(t, url)
	require.NoError(t, bob.Close())

	env := readEnv(t, alice)
	require.Equal(t, TypeResult, env.Type)
	var res ResultContent
	require.NoError(t, env.Decode(&res))
	assert.Equal(t, ResultContent{Winner: "alice", Reason: ReasonAbandoned}, res)
	require.Eventually(t, func() bool { return !hub.Online("bob") }, time.Second, 10*time.Millisecond)
	assert.True(t, hub.Online("alice"))
}

func TestChatOutsideMatchRejected(t *testing.T) {
	_, url := newHubServer(t)
	alice := register(t, url, "alice")
	sendEnv(t, alice, TypeChat, "hello?")
	assert.Equal(t, TypeError, readEnv(t, alice).Type)
}
