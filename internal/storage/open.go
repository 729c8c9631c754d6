package storage

import (
	"context"
	"errors"
	"strings"

	logx "aireplay/pkg/logx"
)

// Store is the minimal persistence API used by the engagement service.
//
// Save calls replace the full snapshot: the engine owns the in-memory
// state and flushes it at most once per tick.
type Store interface {
	LoadSessions(ctx context.Context) ([]SessionRecord, error)
	SaveSessions(ctx context.Context, recs []SessionRecord) error
	LoadReminders(ctx context.Context) ([]ReminderRecord, error)
	SaveReminders(ctx context.Context, recs []ReminderRecord) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
