package config

// Config is the whole on-disk configuration. JSON and YAML are both accepted;
// YAML is coerced to JSON bytes so one strict decoder serves both formats.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Engage controls the proactive-engagement scheduler.
	Engage EngageConfig `json:"engage"`

	// LLM configures the chat-completion backend used to compose
	// proactive replies.
	LLM LLMConfig `json:"llm"`

	// Storage configures the persistence layer. If omitted, state lives in
	// memory only and is lost on restart.
	Storage *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// OwnerUserIDs gates config-level management commands. Empty means
	// anyone in a chat may manage the bot.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngageConfig is the hot-reloadable scheduler configuration.
//
// All trigger decisions operate at minute granularity; TickInterval only
// controls how often the loop wakes up, not trigger precision.
type EngageConfig struct {
	Enabled bool `json:"enabled"`

	// Timezone is an IANA zone id. Empty means the system zone. An invalid
	// zone logs a warning and falls back to the system zone (fail-open).
	Timezone string `json:"timezone,omitempty"`

	// TickInterval is a Go duration string; default "30s". Intervals longer
	// than one minute risk skipping a same-minute daily trigger; this is a
	// known limitation, not a bug.
	TickInterval string `json:"tick_interval,omitempty"`

	// AfterLastMsgMinutes enables the interval trigger; 0 disables it.
	AfterLastMsgMinutes int `json:"after_last_msg_minutes,omitempty"`

	Daily DailyTimes `json:"daily"`

	// QuietHours is "HH:MM-HH:MM"; the window may wrap midnight. Empty or
	// malformed means no quiet hours.
	QuietHours string `json:"quiet_hours,omitempty"`

	// HistoryDepth caps the conversation turns handed to the model.
	HistoryDepth int `json:"history_depth,omitempty"`

	// MaxNoReplyDays auto-unsubscribes conversations whose last user
	// message is older than this; 0 disables the policy.
	MaxNoReplyDays int `json:"max_no_reply_days,omitempty"`

	// CustomPrompts are templates with {now}, {last_user}, {last_ai} and
	// {umo} placeholders. One is picked uniformly at random per trigger.
	// Empty means "let the model continue the conversation naturally".
	CustomPrompts []string `json:"custom_prompts,omitempty"`

	// SubscribeMode is "manual" (default) or "auto". Auto subscribes a
	// conversation on any inbound message.
	SubscribeMode string `json:"subscribe_mode,omitempty"`

	// TimeFormat is a Go time layout for the {now} placeholder and the
	// optional timestamp prefix. Default "2006-01-02 15:04".
	TimeFormat string `json:"time_format,omitempty"`

	// AppendTimeField prefixes proactive messages with "[<timestamp>] ".
	AppendTimeField bool `json:"append_time_field,omitempty"`

	// PersonaOverride, when set, wins over per-session personas.
	PersonaOverride string `json:"persona_override,omitempty"`

	// RatePerSec bounds outbound proactive sends; default 3.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// DailyTimes holds up to two fixed "HH:MM" trigger times. If both are set
// and equal, time2 is shifted one minute forward at load time.
type DailyTimes struct {
	Time1 string `json:"time1,omitempty"`
	Time2 string `json:"time2,omitempty"`
}

type LLMConfig struct {
	// BaseURL overrides the OpenAI-compatible endpoint. Empty means the
	// library default.
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`

	// Timeout is a Go duration string for one completion call; default "60s".
	Timeout string `json:"timeout,omitempty"`

	// Personas maps persona id -> system prompt. DefaultPersona names the
	// fallback entry used when a session has no persona.
	Personas       map[string]string `json:"personas,omitempty"`
	DefaultPersona string            `json:"default_persona,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./aireplay_data/state" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
