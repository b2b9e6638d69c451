package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// Dir is the per-workspace state directory.
	Dir = ".taskjama"

	fileName           = "taskjama.db"
	defaultBusyTimeout = 5 * time.Second
)

type Config struct {
	Workspace string
	// BusyTimeout bounds how long a writer waits on a locked database.
	// Zero means five seconds.
	BusyTimeout time.Duration
}

func (c Config) workspace() string {
	if c.Workspace == "" {
		return "."
	}
	return c.Workspace
}

// EnsureWorkspace creates the state directory under workspace and returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(Config{Workspace: workspace}.workspace(), Dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Path returns the database file for the workspace.
func Path(workspace string) string {
	return filepath.Join(Config{Workspace: workspace}.workspace(), Dir, fileName)
}

func dsn(cfg Config) string {
	timeout := cfg.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", timeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	// writers take the lock at BEGIN so a conditional debit never upgrades mid-transaction
	q.Set("_txlock", "immediate")
	return "file:" + Path(cfg.Workspace) + "?" + q.Encode()
}

// Open opens the workspace database, creating the file on first use, and
// checks that it is reachable.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultBusyTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("open %s: %w", Path(cfg.Workspace), err), conn.Close())
	}
	return conn, nil
}
