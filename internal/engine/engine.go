package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskjama/internal/config"
	"taskjama/internal/domain"
	"taskjama/internal/engine/auth"
	"taskjama/internal/events"
	"taskjama/internal/mojibake"
	"taskjama/internal/points"
	"taskjama/internal/repo"
)

// ErrInvalidInput marks caller mistakes that no retry can fix.
var ErrInvalidInput = errors.New("invalid input")

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Auth      auth.Service
	Config    *config.Config
	Corrupter mojibake.Corrupter
	// Rand feeds title corruption; nil uses the auto-seeded global source.
	Rand mojibake.Rand
	Now  func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Auth:   auth.Service{DB: db},
		Config: cfg,
		Corrupter: mojibake.Corrupter{
			Palette:     []rune(cfg.Mojibake.Palette),
			Placeholder: cfg.Mojibake.Placeholder,
			Fraction:    cfg.Mojibake.Fraction,
			MaxCount:    cfg.Mojibake.MaxCount,
		},
		Now: time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) eventLog() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// RegisterOptions are parameters for creating a user.
type RegisterOptions struct {
	ID       string
	Email    string
	Username string
}

// RegisterUser creates a user with the configured starting balance.
func (e Engine) RegisterUser(ctx context.Context, opts RegisterOptions) (domain.User, error) {
	email := strings.TrimSpace(opts.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, invalid("valid email is required")
	}
	username := strings.TrimSpace(opts.Username)
	if username == "" {
		username = email[:strings.Index(email, "@")]
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := e.stamp()
	u := domain.User{
		ID:        id,
		Email:     email,
		Username:  username,
		Points:    e.Config.Economy.InitialPoints,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.User{}, fmt.Errorf("%w: email %s already registered", repo.ErrConflict, email)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.eventLog().Append(ctx, tx, events.UserRegistered, "user", u.ID, u.ID, events.EventPayload{"points": u.Points}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Repo.GetUser(ctx, nil, id)
}

// GainPoints credits amount to userID and returns the new balance.
func (e Engine) GainPoints(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if _, err := points.Gain(0, amount); err != nil {
		return 0, invalid("%v", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	balance, err := e.gain(ctx, tx, userID, amount, reason)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

func (e Engine) gain(ctx context.Context, tx *sql.Tx, userID string, amount int, reason string) (int, error) {
	balance, err := e.Repo.AddPoints(ctx, tx, userID, amount, e.stamp())
	if err != nil {
		return 0, fmt.Errorf("credit points: %w", err)
	}
	if err := e.eventLog().Append(ctx, tx, events.PointsGained, "user", userID, userID, events.EventPayload{
		"amount": amount, "balance": balance, "reason": reason,
	}); err != nil {
		return 0, err
	}
	return balance, nil
}

// SpendPoints debits amount from userID. The debit is a single conditional
// update, so concurrent spends can never take the balance below zero.
func (e Engine) SpendPoints(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, invalid("spend amount must be positive")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	balance, err := e.spend(ctx, tx, userID, amount, reason)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

func (e Engine) spend(ctx context.Context, tx *sql.Tx, userID string, amount int, reason string) (int, error) {
	balance, ok, err := e.Repo.DebitPoints(ctx, tx, userID, amount, e.stamp())
	if err != nil {
		return 0, fmt.Errorf("debit points: %w", err)
	}
	if !ok {
		if _, err := points.Spend(balance, amount); err != nil {
			return balance, err
		}
		return balance, fmt.Errorf("%w: balance changed during debit", points.ErrInsufficientPoints)
	}
	if err := e.eventLog().Append(ctx, tx, events.PointsSpent, "user", userID, userID, events.EventPayload{
		"amount": amount, "balance": balance, "reason": reason,
	}); err != nil {
		return 0, err
	}
	return balance, nil
}

// CreateAPIKey issues a new key for userID. The raw key is only returned here.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (domain.APIKey, string, error) {
	if _, err := e.Repo.GetUser(ctx, nil, userID); err != nil {
		return domain.APIKey{}, "", err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", err
	}
	raw := "tj_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.eventLog().Append(ctx, tx, events.APIKeyCreated, "api_key", key.ID, userID, events.EventPayload{"name": key.Name}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, raw, nil
}
