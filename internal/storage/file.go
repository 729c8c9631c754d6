package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "aireplay/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.sessions.json
//   - <prefix>.reminders.json
//
// Writes go through a temp file and rename so a crash mid-save never
// leaves a truncated snapshot behind.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	sessionsPath  string
	remindersPath string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &fileStore{
		log:           log,
		sessionsPath:  prefix + ".sessions.json",
		remindersPath: prefix + ".reminders.json",
	}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) LoadSessions(ctx context.Context) ([]SessionRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []SessionRecord
	if err := loadJSONFile(s.sessionsPath, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *fileStore) SaveSessions(ctx context.Context, recs []SessionRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveJSONFile(s.sessionsPath, recs)
}

func (s *fileStore) LoadReminders(ctx context.Context) ([]ReminderRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []ReminderRecord
	if err := loadJSONFile(s.remindersPath, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *fileStore) SaveReminders(ctx context.Context, recs []ReminderRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveJSONFile(s.remindersPath, recs)
}

func loadJSONFile(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func saveJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
