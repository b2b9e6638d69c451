package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultBattleDuration = 30 * time.Second

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	closed bool
}

type match struct {
	id       string
	players  [2]string
	todos    map[string]SelectTodoContent
	gaveUp   map[string]bool
	started  bool
	ended    bool
	timer    *time.Timer
	duration time.Duration
}

func (m *match) opponent(userID string) string {
	if m.players[0] == userID {
		return m.players[1]
	}
	return m.players[0]
}

// Hub routes envelopes between connected users and referees matches. Users
// are identified by the ids they announce in invite messages.
type Hub struct {
	mu       sync.Mutex
	logger   *zap.Logger
	upgrader websocket.Upgrader
	duration time.Duration
	now      func() time.Time

	clients map[*client]struct{}
	byUser  map[string]*client
	// invites maps an invited user to the hosts that invited them.
	invites map[string]map[string]bool
	matches map[string]*match
}

type HubOption func(*Hub)

func WithBattleDuration(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.duration = d
		}
	}
}

func WithHubLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCheckOrigin overrides the upgrader origin check. The default accepts any origin.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger:   zap.NewNop(),
		duration: DefaultBattleDuration,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		byUser:  make(map[string]*client),
		invites: make(map[string]map[string]bool),
		matches: make(map[string]*match),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.HandleConn(conn)
}

// HandleConn serves an established connection and returns once it is closed.
func (h *Hub) HandleConn(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writer()
	}()
	c.reader(h)
	<-done
}

// Online reports whether userID has a registered connection.
func (h *Hub) Online(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.byUser[userID]
	return ok
}

// Close drops every connection and stops running match timers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.matches {
		if m.timer != nil {
			m.timer.Stop()
		}
	}
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

func (c *client) reader(h *Hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("user_id", h.userOf(c)), zap.Error(err))
			}
			return
		}
		if string(data) == Ack {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.mu.Lock()
			h.sendError(c, "malformed message")
			h.mu.Unlock()
			continue
		}
		h.dispatch(c, env)
	}
}

func (c *client) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues a raw frame, dropping it when the client is slow or gone.
// Callers hold h.mu.
func (c *client) enqueue(frame []byte) bool {
	if c == nil || c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// sendJSON queues an envelope. Callers hold h.mu.
func (h *Hub) sendJSON(c *client, t MessageType, content any) {
	env, err := NewEnvelope(t, content)
	if err != nil {
		h.logger.Error("encode envelope", zap.String("type", string(t)), zap.Error(err))
		return
	}
	out, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("encode envelope", zap.String("type", string(t)), zap.Error(err))
		return
	}
	if !c.enqueue(out) {
		h.logger.Debug("dropped frame", zap.String("type", string(t)), zap.String("user_id", c.userIDOrEmpty()))
	}
}

func (h *Hub) sendError(c *client, msg string) {
	h.sendJSON(c, TypeError, ErrorContent{Message: msg})
}

func (c *client) userIDOrEmpty() string {
	if c == nil {
		return ""
	}
	return c.userID
}

func (h *Hub) userOf(c *client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.userID
}

func (h *Hub) dispatch(c *client, env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch env.Type {
	case TypeInvite:
		var in InviteContent
		if err := env.Decode(&in); err != nil || in.HostID == "" {
			h.sendError(c, "invite requires hostId")
			return
		}
		h.register(c, in.HostID)
		if in.TargetID == SelfRegistration {
			c.enqueue([]byte(Ack))
			return
		}
		h.invite(c, in)
	case TypeJoin:
		var in JoinContent
		if err := env.Decode(&in); err != nil || in.HostID == "" {
			h.sendError(c, "join requires hostId")
			return
		}
		h.join(c, in.HostID)
	case TypeSelectTodo:
		var in SelectTodoContent
		if err := env.Decode(&in); err != nil {
			h.sendError(c, "invalid select_todo")
			return
		}
		h.selectTodo(c, in)
	case TypeChat, TypeJama:
		m := h.matches[c.userID]
		if c.userID == "" || m == nil || m.ended {
			h.sendError(c, "not in a match")
			return
		}
		h.forward(m.opponent(c.userID), env)
	case TypeFinish:
		var in FinishContent
		if err := env.Decode(&in); err != nil {
			h.sendError(c, "invalid finish")
			return
		}
		h.finish(c, in)
	default:
		h.sendError(c, "unsupported message type "+string(env.Type))
	}
}

// register binds userID to c. A newer connection for the same user takes over.
func (h *Hub) register(c *client, userID string) {
	if c.userID == userID {
		h.byUser[userID] = c
		return
	}
	if c.userID != "" && h.byUser[c.userID] == c {
		delete(h.byUser, c.userID)
	}
	c.userID = userID
	h.byUser[userID] = c
	h.logger.Debug("websocket user registered", zap.String("user_id", userID))
}

func (h *Hub) invite(c *client, in InviteContent) {
	target, ok := h.byUser[in.TargetID]
	if !ok {
		h.sendError(c, "user "+in.TargetID+" is not online")
		return
	}
	if in.TargetID == in.HostID {
		h.sendError(c, "cannot invite yourself")
		return
	}
	hosts := h.invites[in.TargetID]
	if hosts == nil {
		hosts = make(map[string]bool)
		h.invites[in.TargetID] = hosts
	}
	hosts[in.HostID] = true
	h.sendJSON(target, TypeInvitation, InvitationContent{From: in.HostID})
}

func (h *Hub) join(c *client, hostID string) {
	joiner := c.userID
	if joiner == "" {
		h.sendError(c, "register before joining")
		return
	}
	if !h.invites[joiner][hostID] {
		h.sendError(c, "no invitation from "+hostID)
		return
	}
	host, ok := h.byUser[hostID]
	if !ok {
		h.sendError(c, "host "+hostID+" is not online")
		return
	}
	if h.matches[hostID] != nil || h.matches[joiner] != nil {
		h.sendError(c, "already in a match")
		return
	}
	delete(h.invites[joiner], hostID)
	if len(h.invites[joiner]) == 0 {
		delete(h.invites, joiner)
	}
	m := &match{
		id:       uuid.NewString(),
		players:  [2]string{hostID, joiner},
		todos:    make(map[string]SelectTodoContent, 2),
		gaveUp:   make(map[string]bool, 2),
		duration: h.duration,
	}
	h.matches[hostID] = m
	h.matches[joiner] = m
	h.logger.Info("match confirmed", zap.String("match_id", m.id), zap.String("host", hostID), zap.String("joiner", joiner))
	h.sendJSON(host, TypeMatchConfirmed, MatchConfirmedContent{OpponentID: joiner})
	h.sendJSON(c, TypeMatchConfirmed, MatchConfirmedContent{OpponentID: hostID})
}

func (h *Hub) selectTodo(c *client, in SelectTodoContent) {
	m := h.matches[c.userID]
	if c.userID == "" || m == nil {
		h.sendError(c, "not in a match")
		return
	}
	if m.started {
		h.sendError(c, "battle already started")
		return
	}
	m.todos[c.userID] = in
	if len(m.todos) < 2 {
		return
	}
	m.started = true
	start := h.now().UnixMilli()
	for _, p := range m.players {
		h.sendJSON(h.byUser[p], TypeGameStart, GameStartContent{
			OpponentTodo:    m.todos[m.opponent(p)],
			StartTime:       start,
			DurationSeconds: int(m.duration / time.Second),
		})
	}
	m.timer = time.AfterFunc(m.duration, func() { h.expire(m) })
}

func (h *Hub) forward(userID string, env Envelope) {
	target := h.byUser[userID]
	if target == nil {
		return
	}
	out, err := json.Marshal(env)
	if err != nil {
		return
	}
	target.enqueue(out)
}

func (h *Hub) finish(c *client, in FinishContent) {
	m := h.matches[c.userID]
	if c.userID == "" || m == nil || !m.started || m.ended {
		h.sendError(c, "no running battle")
		return
	}
	if in.Completed {
		h.end(m, ResultContent{Winner: c.userID, Reason: ReasonCompleted}, "")
		return
	}
	m.gaveUp[c.userID] = true
	if len(m.gaveUp) == 2 {
		h.end(m, ResultContent{Reason: ReasonTimeout}, "")
	}
}

func (h *Hub) expire(m *match) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m.ended {
		return
	}
	h.end(m, ResultContent{Reason: ReasonTimeout}, "")
}

// end closes the match and reports res to every player except skip.
func (h *Hub) end(m *match, res ResultContent, skip string) {
	m.ended = true
	if m.timer != nil {
		m.timer.Stop()
	}
	for _, p := range m.players {
		if h.matches[p] == m {
			delete(h.matches, p)
		}
		if p != skip {
			h.sendJSON(h.byUser[p], TypeResult, res)
		}
	}
	h.logger.Info("match ended", zap.String("match_id", m.id), zap.String("reason", res.Reason), zap.String("winner", res.Winner))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	delete(h.clients, c)
	if c.userID != "" && h.byUser[c.userID] == c {
		if m := h.matches[c.userID]; m != nil && !m.ended {
			h.end(m, ResultContent{Winner: m.opponent(c.userID), Reason: ReasonAbandoned}, c.userID)
		}
		delete(h.byUser, c.userID)
		delete(h.invites, c.userID)
		for target, hosts := range h.invites {
			delete(hosts, c.userID)
			if len(hosts) == 0 {
				delete(h.invites, target)
			}
		}
	}
	c.closed = true
	close(c.send)
}
