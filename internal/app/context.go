package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taskjama/internal/config"
	"taskjama/internal/db"
	"taskjama/internal/engine"
	"taskjama/internal/migrate"
)

// Workspace is an opened .taskjama directory: database migrated, config
// loaded and an engine ready to use.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

// Open prepares the workspace at dir, creating the database on first use.
// A missing taskjama.yml means defaults.
func Open(ctx context.Context, dir string) (*Workspace, error) {
	if _, err := db.EnsureWorkspace(dir); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	cfg, err := config.LoadOrDefault(dir)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		return nil, errors.Join(fmt.Errorf("migrate: %w", err), conn.Close())
	}
	return &Workspace{
		Dir:    dir,
		DB:     conn,
		Config: cfg,
		Engine: engine.New(conn, cfg),
	}, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// NewLogger builds the process logger. Debug switches to the development
// encoder and level.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}
