//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "aireplay/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadSessions(ctx context.Context) ([]SessionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, subscribed, auto_unsubscribed, last_activity_at, last_user_at, last_fired_tag, persona_id, history
		 FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var sub, auto int
		var lastAct, lastUser string
		var tag, persona, history sql.NullString
		if err := rows.Scan(&r.ConversationID, &sub, &auto, &lastAct, &lastUser, &tag, &persona, &history); err != nil {
			return nil, err
		}
		r.Subscribed = sub != 0
		r.AutoUnsubscribed = auto != 0
		r.LastActivityAt, _ = time.Parse(time.RFC3339Nano, lastAct)
		r.LastUserAt, _ = time.Parse(time.RFC3339Nano, lastUser)
		r.LastFiredTag = tag.String
		r.PersonaID = persona.String
		if history.String != "" {
			if err := json.Unmarshal([]byte(history.String), &r.History); err != nil {
				return nil, fmt.Errorf("decode history for %s: %w", r.ConversationID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveSessions(ctx context.Context, recs []SessionRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return err
	}
	for _, r := range recs {
		var history any
		if len(r.History) > 0 {
			b, err := json.Marshal(r.History)
			if err != nil {
				return err
			}
			history = string(b)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions(conversation_id, subscribed, auto_unsubscribed, last_activity_at, last_user_at, last_fired_tag, persona_id, history)
			 VALUES(?,?,?,?,?,?,?,?)`,
			r.ConversationID, boolInt(r.Subscribed), boolInt(r.AutoUnsubscribed),
			r.LastActivityAt.Format(time.RFC3339Nano), r.LastUserAt.Format(time.RFC3339Nano),
			nullStr(r.LastFiredTag), nullStr(r.PersonaID), history,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadReminders(ctx context.Context) ([]ReminderRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, content, kind, due_at, time_of_day, last_fired_date, created_at
		 FROM reminders`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderRecord
	for rows.Next() {
		var r ReminderRecord
		var due, tod, fired sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Content, &r.Kind, &due, &tod, &fired, &created); err != nil {
			return nil, err
		}
		r.DueAt = due.String
		r.TimeOfDay = tod.String
		r.LastFiredDate = fired.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveReminders(ctx context.Context, recs []ReminderRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders`); err != nil {
		return err
	}
	for _, r := range recs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reminders(id, conversation_id, content, kind, due_at, time_of_day, last_fired_date, created_at)
			 VALUES(?,?,?,?,?,?,?,?)`,
			r.ID, r.ConversationID, r.Content, r.Kind,
			nullStr(r.DueAt), nullStr(r.TimeOfDay), nullStr(r.LastFiredDate),
			r.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
