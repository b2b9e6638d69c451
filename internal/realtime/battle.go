package realtime

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Phase string

const (
	PhasePrep   Phase = "PREP"
	PhaseBattle Phase = "BATTLE"
	PhaseResult Phase = "RESULT"
)

const (
	DefaultPenaltyDuration = 5 * time.Second
	DefaultPenaltyMessage  = "PENALTY ACTIVATED!"
)

var ErrWrongPhase = errors.New("action not allowed in this phase")

// Sender is the outbound half of a Client.
type Sender interface {
	Send(t MessageType, content any) error
}

type ChatLine struct {
	FromMe bool
	Text   string
}

// BattleState is a snapshot of a Battle.
type BattleState struct {
	Phase          Phase
	OpponentTodo   *SelectTodoContent
	TimeLeft       int
	Result         *ResultContent
	PenaltyActive  bool
	PenaltyMessage string
	Chats          []ChatLine
}

// Battle drives one player's side of a match: PREP until game_start, BATTLE
// with a local countdown, RESULT once the hub reports the outcome.
type Battle struct {
	sender   Sender
	duration time.Duration
	tick     time.Duration
	penalty  time.Duration
	onChange func(BattleState)
	logger   *zap.Logger

	mu           sync.Mutex
	state        BattleState
	stopTick     chan struct{}
	penaltyTimer *time.Timer
	tickDone     chan struct{}
}

type BattleOption func(*Battle)

// WithTiming sets the countdown length, its tick interval and the penalty duration.
func WithTiming(duration, tick, penalty time.Duration) BattleOption {
	return func(b *Battle) {
		if duration > 0 {
			b.duration = duration
		}
		if tick > 0 {
			b.tick = tick
		}
		if penalty > 0 {
			b.penalty = penalty
		}
	}
}

func WithBattleLogger(logger *zap.Logger) BattleOption {
	return func(b *Battle) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// OnChange is called with a fresh snapshot after every state change.
func OnChange(fn func(BattleState)) BattleOption {
	return func(b *Battle) { b.onChange = fn }
}

func NewBattle(sender Sender, opts ...BattleOption) *Battle {
	b := &Battle{
		sender:   sender,
		duration: DefaultBattleDuration,
		tick:     time.Second,
		penalty:  DefaultPenaltyDuration,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.state = BattleState{Phase: PhasePrep, TimeLeft: b.ticks()}
	return b
}

func (b *Battle) ticks() int {
	return int(b.duration / b.tick)
}

func (b *Battle) State() BattleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

func (b *Battle) snapshot() BattleState {
	s := b.state
	s.Chats = append([]ChatLine(nil), b.state.Chats...)
	return s
}

// changed must be called without b.mu held.
func (b *Battle) changed() {
	if b.onChange != nil {
		b.onChange(b.State())
	}
}

// SelectTodo submits the todo this player battles with.
func (b *Battle) SelectTodo(title, todoID string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is required")
	}
	b.mu.Lock()
	phase := b.state.Phase
	b.mu.Unlock()
	if phase != PhasePrep {
		return ErrWrongPhase
	}
	return b.sender.Send(TypeSelectTodo, SelectTodoContent{Title: title, TodoID: todoID})
}

func (b *Battle) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := b.sender.Send(TypeChat, text); err != nil {
		return err
	}
	b.mu.Lock()
	b.state.Chats = append(b.state.Chats, ChatLine{FromMe: true, Text: text})
	b.mu.Unlock()
	b.changed()
	return nil
}

// SendJama triggers a penalty on the opponent.
func (b *Battle) SendJama(message string) error {
	b.mu.Lock()
	phase := b.state.Phase
	b.mu.Unlock()
	if phase != PhaseBattle {
		return ErrWrongPhase
	}
	return b.sender.Send(TypeJama, message)
}

// Finish reports the end of this player's battle.
func (b *Battle) Finish(completed bool) error {
	return b.sender.Send(TypeFinish, FinishContent{Completed: completed})
}

// Handle applies an inbound envelope. It is meant to be passed to Client.Subscribe.
func (b *Battle) Handle(env Envelope) {
	switch env.Type {
	case TypeGameStart:
		var gs GameStartContent
		if err := env.Decode(&gs); err != nil {
			return
		}
		b.mu.Lock()
		if b.state.Phase != PhasePrep {
			b.mu.Unlock()
			return
		}
		b.state.Phase = PhaseBattle
		b.state.OpponentTodo = &gs.OpponentTodo
		b.state.TimeLeft = b.ticks()
		b.startCountdown()
		b.mu.Unlock()
	case TypeChat:
		b.mu.Lock()
		b.state.Chats = append(b.state.Chats, ChatLine{Text: env.Text()})
		b.mu.Unlock()
	case TypeResult:
		var res ResultContent
		if err := env.Decode(&res); err != nil {
			return
		}
		b.mu.Lock()
		b.state.Phase = PhaseResult
		b.state.Result = &res
		b.stopCountdown()
		b.mu.Unlock()
	case TypeJama:
		msg := env.Text()
		if msg == "" {
			msg = DefaultPenaltyMessage
		}
		b.mu.Lock()
		b.state.PenaltyActive = true
		b.state.PenaltyMessage = msg
		if b.penaltyTimer != nil {
			b.penaltyTimer.Stop()
		}
		b.penaltyTimer = time.AfterFunc(b.penalty, b.clearPenalty)
		b.mu.Unlock()
	default:
		return
	}
	b.changed()
}

func (b *Battle) clearPenalty() {
	b.mu.Lock()
	b.state.PenaltyActive = false
	b.mu.Unlock()
	b.changed()
}

// startCountdown runs the local timer. Callers hold b.mu.
func (b *Battle) startCountdown() {
	stop := make(chan struct{})
	done := make(chan struct{})
	b.stopTick = stop
	b.tickDone = done
	go func() {
		defer close(done)
		t := time.NewTicker(b.tick)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				b.mu.Lock()
				if b.state.Phase != PhaseBattle {
					b.mu.Unlock()
					return
				}
				b.state.TimeLeft--
				left := b.state.TimeLeft
				b.mu.Unlock()
				b.changed()
				if left <= 0 {
					// the hub referees; this only tells it our time is up
					if err := b.sender.Send(TypeFinish, FinishContent{}); err != nil {
						b.logger.Warn("send finish on timeout", zap.Error(err))
					}
					return
				}
			}
		}
	}()
}

// stopCountdown signals the countdown goroutine. Callers hold b.mu.
func (b *Battle) stopCountdown() {
	if b.stopTick != nil {
		close(b.stopTick)
		b.stopTick = nil
	}
}

// Stop cancels every timer and waits for the countdown to exit.
func (b *Battle) Stop() {
	b.mu.Lock()
	b.stopCountdown()
	if b.penaltyTimer != nil {
		b.penaltyTimer.Stop()
	}
	done := b.tickDone
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}
