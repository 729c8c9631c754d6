package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalJSON = `{
  "telegram": {"token": "t0ken", "poll_timeout": "5s"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "engage": {
    "enabled": true,
    "timezone": "UTC",
    "after_last_msg_minutes": 90,
    "daily": {"time1": "09:00", "time2": ""},
    "quiet_hours": "23:00-07:00"
  },
  "llm": {"api_key": "k", "model": "gpt-4o-mini"}
}`

func TestManagerLoadJSON(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfigFile(t, "config.json", minimalJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "t0ken" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Engage.AfterLastMsgMinutes != 90 {
		t.Errorf("after_last_msg_minutes = %d, want 90", cfg.Engage.AfterLastMsgMinutes)
	}
	if cfg.Engage.Daily.Time1 != "09:00" {
		t.Errorf("daily.time1 = %q", cfg.Engage.Daily.Time1)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get() should return the committed config")
	}
}

func TestManagerLoadYAML(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"telegram:",
		"  token: t0ken",
		"logging:",
		"  level: info",
		"  console: true",
		"  file: {enabled: false, path: \"\"}",
		"engage:",
		"  enabled: true",
		"  timezone: Europe/Berlin",
		"  daily: {time1: \"08:30\", time2: \"\"}",
		"llm:",
		"  api_key: k",
		"  model: gpt-4o-mini",
	}, "\n")

	m := NewManager(writeConfigFile(t, "config.yaml", body))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engage.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %q", cfg.Engage.Timezone)
	}
	if cfg.Engage.Daily.Time1 != "08:30" {
		t.Errorf("daily.time1 = %q", cfg.Engage.Daily.Time1)
	}
}

func TestManagerRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		body string
	}{
		{"unknown field", "config.json", `{"telegram": {"token": "t"}, "surprise": 1}`},
		{"trailing data", "config.json", `{"telegram": {"token": "t"}} {"again": true}`},
		{"broken yaml", "config.yaml", "telegram: [unclosed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfigFile(t, tc.file, tc.body))
			if _, err := m.Load(); err == nil {
				t.Fatal("Load should fail")
			}
		})
	}
}

func TestManagerUpdateRoundTrip(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", minimalJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	cfg, err := m.Update(context.Background(), func(cfg *Config) {
		cfg.Engage.QuietHours = "22:00-06:00"
		cfg.Engage.CustomPrompts = append(cfg.Engage.CustomPrompts, "hey {umo}")
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cfg.Engage.QuietHours != "22:00-06:00" {
		t.Errorf("quiet_hours = %q", cfg.Engage.QuietHours)
	}

	select {
	case got := <-sub:
		if got.Engage.QuietHours != "22:00-06:00" {
			t.Errorf("published quiet_hours = %q", got.Engage.QuietHours)
		}
	case <-time.After(time.Second):
		t.Fatal("no publish after Update")
	}

	// a fresh manager must see the rewritten file
	reloaded, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Engage.QuietHours != "22:00-06:00" {
		t.Errorf("persisted quiet_hours = %q", reloaded.Engage.QuietHours)
	}
	if len(reloaded.Engage.CustomPrompts) != 1 || reloaded.Engage.CustomPrompts[0] != "hey {umo}" {
		t.Errorf("persisted prompts = %v", reloaded.Engage.CustomPrompts)
	}
}

func TestManagerUpdateValidatorRejects(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", minimalJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Engage.MaxNoReplyDays < 0 {
			return errors.New("max_no_reply_days must be >= 0")
		}
		return nil
	})

	before := m.Get()
	_, err := m.Update(context.Background(), func(cfg *Config) {
		cfg.Engage.MaxNoReplyDays = -1
	})
	if err == nil {
		t.Fatal("Update should fail validation")
	}
	if m.Get() != before {
		t.Error("rejected Update must not commit")
	}

	// file untouched
	reloaded, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Engage.MaxNoReplyDays != 0 {
		t.Errorf("persisted max_no_reply_days = %d, want 0", reloaded.Engage.MaxNoReplyDays)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"10s", 10 * time.Second, false},
		{"2m30s", 2*time.Minute + 30*time.Second, false},
		{"-5s", 0, true},
		{"soon", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseDurationField("test.field", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDurationField(%q): want error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDurationField(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	def := 30 * time.Second
	if got, err := ParseDurationOrDefault("f", "", def); err != nil || got != def {
		t.Errorf("empty: got %v, %v", got, err)
	}
	if got, err := ParseDurationOrDefault("f", "1m", def); err != nil || got != time.Minute {
		t.Errorf("1m: got %v, %v", got, err)
	}
	if _, err := ParseDurationOrDefault("f", "nope", def); err == nil {
		t.Error("invalid input should error, not default")
	}
}
