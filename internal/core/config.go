package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aireplay/internal/config"
	"aireplay/internal/engage"
	"aireplay/internal/storage"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}

// validateConfig is the gate for both startup and hot reload: a config that
// fails here is never committed.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}

	e := cfg.Engage
	if e.AfterLastMsgMinutes < 0 {
		return fmt.Errorf("engage.after_last_msg_minutes must be >= 0")
	}
	if e.MaxNoReplyDays < 0 {
		return fmt.Errorf("engage.max_no_reply_days must be >= 0")
	}
	if e.HistoryDepth < 0 {
		return fmt.Errorf("engage.history_depth must be >= 0")
	}
	if e.RatePerSec < 0 {
		return fmt.Errorf("engage.rate_per_sec must be >= 0")
	}
	if tz := strings.TrimSpace(e.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("engage.timezone: %w", err)
		}
	}
	if d, err := config.ParseDurationField("engage.tick_interval", e.TickInterval); err != nil {
		return err
	} else if e.TickInterval != "" && d < time.Second {
		return fmt.Errorf("engage.tick_interval must be >= 1s")
	}
	for _, dt := range []string{e.Daily.Time1, e.Daily.Time2} {
		if strings.TrimSpace(dt) == "" {
			continue
		}
		if _, err := engage.NormalizeTimeOfDay(dt); err != nil {
			return fmt.Errorf("engage.daily: %w", err)
		}
	}
	if q := strings.TrimSpace(e.QuietHours); q != "" {
		if _, ok := engage.ParseQuietWindow(q); !ok {
			return fmt.Errorf("engage.quiet_hours: must be \"HH:MM-HH:MM\"")
		}
	}

	if _, err := config.ParseDurationField("llm.timeout", cfg.LLM.Timeout); err != nil {
		return err
	}
	if cfg.LLM.DefaultPersona != "" {
		if _, ok := cfg.LLM.Personas[cfg.LLM.DefaultPersona]; !ok {
			return fmt.Errorf("llm.default_persona %q has no matching persona", cfg.LLM.DefaultPersona)
		}
	}

	if cfg.Storage != nil {
		driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
		switch driver {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver %q is not supported", cfg.Storage.Driver)
		}
		if (driver == "file" || driver == "sqlite" || driver == "sqlite3") && strings.TrimSpace(cfg.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for driver %q", driver)
		}
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
