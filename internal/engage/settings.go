package engage

import (
	"strings"
	"time"

	"aireplay/internal/config"
	logx "aireplay/pkg/logx"
)

const (
	defaultTickInterval = 30 * time.Second
	defaultTimeFormat   = "2006-01-02 15:04"
	defaultHistoryDepth = 10

	layoutMinute     = "15:04"
	layoutDate       = "2006-01-02"
	layoutDateMinute = "2006-01-02 15:04"
)

// Settings is the parsed, validated form of config.EngageConfig. It is
// snapshotted once per tick so a config reload mid-tick never produces a
// half-applied decision.
type Settings struct {
	Enabled         bool
	Location        *time.Location
	TickInterval    time.Duration
	AfterLastMsg    time.Duration // 0 disables the interval trigger
	DailyTimes      []string      // normalized "HH:MM", at most two
	Quiet           QuietWindow
	HistoryDepth    int
	MaxNoReply      time.Duration // 0 disables auto-unsubscribe
	Prompts         []string
	AutoSubscribe   bool
	TimeFormat      string
	AppendTimeField bool
	PersonaOverride string
}

// ParseSettings normalizes the raw config. Every malformed field fails open
// to "feature disabled" with a warning; parsing never returns an error so a
// bad reload cannot stop the loop.
func ParseSettings(cfg config.EngageConfig, log logx.Logger) Settings {
	st := Settings{
		Enabled:         cfg.Enabled,
		Location:        time.Local,
		TickInterval:    defaultTickInterval,
		HistoryDepth:    cfg.HistoryDepth,
		Prompts:         append([]string(nil), cfg.CustomPrompts...),
		AutoSubscribe:   strings.EqualFold(strings.TrimSpace(cfg.SubscribeMode), "auto"),
		TimeFormat:      strings.TrimSpace(cfg.TimeFormat),
		AppendTimeField: cfg.AppendTimeField,
		PersonaOverride: strings.TrimSpace(cfg.PersonaOverride),
	}

	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn("invalid timezone, using system zone", logx.String("tz", tz), logx.Err(err))
		} else {
			st.Location = loc
		}
	}

	if d, err := config.ParseDurationField("engage.tick_interval", cfg.TickInterval); err != nil {
		log.Warn("invalid tick_interval, using default", logx.String("value", cfg.TickInterval), logx.Err(err))
	} else if d > 0 {
		st.TickInterval = d
	}

	if cfg.AfterLastMsgMinutes > 0 {
		st.AfterLastMsg = time.Duration(cfg.AfterLastMsgMinutes) * time.Minute
	}
	if cfg.MaxNoReplyDays > 0 {
		st.MaxNoReply = time.Duration(cfg.MaxNoReplyDays) * 24 * time.Hour
	}
	if st.HistoryDepth <= 0 {
		st.HistoryDepth = defaultHistoryDepth
	}
	if st.TimeFormat == "" {
		st.TimeFormat = defaultTimeFormat
	}

	st.DailyTimes = normalizeDailyTimes(cfg.Daily, log)

	w, ok := ParseQuietWindow(cfg.QuietHours)
	if !ok {
		log.Warn("malformed quiet_hours, ignoring", logx.String("value", cfg.QuietHours))
	}
	st.Quiet = w

	return st
}

// normalizeDailyTimes validates both daily trigger times and resolves the
// equal-times collision by shifting the second time one minute forward.
func normalizeDailyTimes(d config.DailyTimes, log logx.Logger) []string {
	var out []string
	for _, raw := range []string{d.Time1, d.Time2} {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		t, err := time.Parse(layoutMinute, s)
		if err != nil {
			log.Warn("malformed daily time, ignoring", logx.String("value", s), logx.Err(err))
			continue
		}
		out = append(out, t.Format(layoutMinute))
	}
	if len(out) == 2 && out[0] == out[1] {
		t, _ := time.Parse(layoutMinute, out[1])
		out[1] = t.Add(time.Minute).Format(layoutMinute)
	}
	return out
}
