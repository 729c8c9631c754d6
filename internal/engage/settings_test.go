package engage

import (
	"testing"
	"time"

	"aireplay/internal/config"
	logx "aireplay/pkg/logx"
)

func TestParseSettingsDefaults(t *testing.T) {
	t.Parallel()
	st := ParseSettings(config.EngageConfig{Enabled: true}, logx.Nop())
	if st.TickInterval != defaultTickInterval {
		t.Fatalf("tick interval %v", st.TickInterval)
	}
	if st.TimeFormat != defaultTimeFormat {
		t.Fatalf("time format %q", st.TimeFormat)
	}
	if st.HistoryDepth != defaultHistoryDepth {
		t.Fatalf("history depth %d", st.HistoryDepth)
	}
	if st.AfterLastMsg != 0 || st.MaxNoReply != 0 {
		t.Fatal("interval and auto-unsubscribe should default to disabled")
	}
	if len(st.DailyTimes) != 0 {
		t.Fatalf("daily times %v", st.DailyTimes)
	}
}

func TestParseSettingsDailyCollision(t *testing.T) {
	t.Parallel()
	st := ParseSettings(config.EngageConfig{
		Daily: config.DailyTimes{Time1: "09:00", Time2: "09:00"},
	}, logx.Nop())
	if len(st.DailyTimes) != 2 || st.DailyTimes[0] != "09:00" || st.DailyTimes[1] != "09:01" {
		t.Fatalf("collision not shifted: %v", st.DailyTimes)
	}
}

func TestParseSettingsDailyCollisionWrapsMidnight(t *testing.T) {
	t.Parallel()
	st := ParseSettings(config.EngageConfig{
		Daily: config.DailyTimes{Time1: "23:59", Time2: "23:59"},
	}, logx.Nop())
	if len(st.DailyTimes) != 2 || st.DailyTimes[1] != "00:00" {
		t.Fatalf("expected wrap to 00:00, got %v", st.DailyTimes)
	}
}

func TestParseSettingsMalformedDailyDropped(t *testing.T) {
	t.Parallel()
	st := ParseSettings(config.EngageConfig{
		Daily: config.DailyTimes{Time1: "9 o'clock", Time2: "21:00"},
	}, logx.Nop())
	if len(st.DailyTimes) != 1 || st.DailyTimes[0] != "21:00" {
		t.Fatalf("expected only the valid time, got %v", st.DailyTimes)
	}
}

func TestParseSettingsInvalidTimezoneFailsOpen(t *testing.T) {
	t.Parallel()
	st := ParseSettings(config.EngageConfig{Timezone: "Mars/Olympus"}, logx.Nop())
	if st.Location != time.Local {
		t.Fatalf("expected system zone fallback, got %v", st.Location)
	}
}

func TestParseSettingsTimezone(t *testing.T) {
	t.Parallel()
	st := ParseSettings(config.EngageConfig{Timezone: "UTC"}, logx.Nop())
	if st.Location.String() != "UTC" {
		t.Fatalf("got %v", st.Location)
	}
}

func TestParseSettingsDurations(t *testing.T) {
	t.Parallel()
	st := ParseSettings(config.EngageConfig{
		TickInterval:        "10s",
		AfterLastMsgMinutes: 45,
		MaxNoReplyDays:      7,
	}, logx.Nop())
	if st.TickInterval != 10*time.Second {
		t.Fatalf("tick %v", st.TickInterval)
	}
	if st.AfterLastMsg != 45*time.Minute {
		t.Fatalf("after last msg %v", st.AfterLastMsg)
	}
	if st.MaxNoReply != 7*24*time.Hour {
		t.Fatalf("max no reply %v", st.MaxNoReply)
	}
}
