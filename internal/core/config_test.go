package core

import (
	"context"
	"strings"
	"testing"

	"aireplay/internal/config"
)

func validBase() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{Token: "t"},
		Engage: config.EngageConfig{
			Enabled:             true,
			Timezone:            "UTC",
			TickInterval:        "30s",
			AfterLastMsgMinutes: 30,
			Daily:               config.DailyTimes{Time1: "09:00"},
			QuietHours:          "23:00-07:00",
		},
		LLM: config.LLMConfig{Model: "m"},
	}
}

func TestValidateConfigOK(t *testing.T) {
	t.Parallel()
	if err := validateConfig(context.Background(), validBase()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{"missing token", func(c *config.Config) { c.Telegram.Token = " " }, "telegram.token"},
		{"negative after", func(c *config.Config) { c.Engage.AfterLastMsgMinutes = -1 }, "after_last_msg_minutes"},
		{"negative days", func(c *config.Config) { c.Engage.MaxNoReplyDays = -1 }, "max_no_reply_days"},
		{"bad timezone", func(c *config.Config) { c.Engage.Timezone = "Mars/Olympus" }, "engage.timezone"},
		{"sub-second tick", func(c *config.Config) { c.Engage.TickInterval = "100ms" }, "tick_interval"},
		{"bad daily", func(c *config.Config) { c.Engage.Daily.Time2 = "25:99" }, "engage.daily"},
		{"bad quiet", func(c *config.Config) { c.Engage.QuietHours = "night" }, "quiet_hours"},
		{"bad llm timeout", func(c *config.Config) { c.LLM.Timeout = "soon" }, "llm.timeout"},
		{"dangling default persona", func(c *config.Config) { c.LLM.DefaultPersona = "ghost" }, "default_persona"},
		{"unknown storage driver", func(c *config.Config) {
			c.Storage = &config.StorageConfig{Driver: "redis", Path: "x"}
		}, "storage.driver"},
		{"file driver without path", func(c *config.Config) {
			c.Storage = &config.StorageConfig{Driver: "file"}
		}, "storage.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validBase()
			tc.mutate(cfg)
			err := validateConfig(context.Background(), cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	cfg := validBase()
	if _, enabled, err := mapStorageConfig(cfg); err != nil || enabled {
		t.Fatalf("nil storage should be disabled: %v %v", enabled, err)
	}

	cfg.Storage = &config.StorageConfig{Driver: "none"}
	if _, enabled, _ := mapStorageConfig(cfg); enabled {
		t.Fatal("driver none should be disabled")
	}

	cfg.Storage = &config.StorageConfig{Driver: "File", Path: "./data/state", BusyTimeout: "2s"}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("got %v %v", enabled, err)
	}
	if sc.Driver != "file" || sc.Path != "./data/state" || sc.BusyTimeout.Seconds() != 2 {
		t.Fatalf("mapped %+v", sc)
	}
}
