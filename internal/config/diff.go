package config

import (
	"reflect"
	"sort"
	"strings"

	logx "aireplay/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus safe
// structured attrs for logging (never includes secrets like tokens or API keys).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Telegram (never log token)
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Engage (scheduler knobs)
	if !reflect.DeepEqual(oldCfg.Engage, newCfg.Engage) {
		changed = append(changed, "engage")
		attrs = append(attrs,
			logx.Bool("engage.enabled", newCfg.Engage.Enabled),
			logx.String("engage.timezone", strings.TrimSpace(newCfg.Engage.Timezone)),
			logx.Int("engage.after_last_msg_minutes", newCfg.Engage.AfterLastMsgMinutes),
			logx.String("engage.daily1", strings.TrimSpace(newCfg.Engage.Daily.Time1)),
			logx.String("engage.daily2", strings.TrimSpace(newCfg.Engage.Daily.Time2)),
			logx.String("engage.quiet_hours", strings.TrimSpace(newCfg.Engage.QuietHours)),
			logx.Int("engage.max_no_reply_days", newCfg.Engage.MaxNoReplyDays),
			logx.Int("engage.prompt_count", len(newCfg.Engage.CustomPrompts)),
			logx.String("engage.subscribe_mode", strings.TrimSpace(newCfg.Engage.SubscribeMode)),
		)
	}

	// LLM (never log api key)
	if !reflect.DeepEqual(oldCfg.LLM, newCfg.LLM) {
		changed = append(changed, "llm")
		attrs = append(attrs,
			logx.String("llm.model", strings.TrimSpace(newCfg.LLM.Model)),
			logx.Bool("llm.base_url_set", strings.TrimSpace(newCfg.LLM.BaseURL) != ""),
			logx.Bool("llm.api_key_set", strings.TrimSpace(newCfg.LLM.APIKey) != ""),
			logx.Int("llm.persona_count", len(newCfg.LLM.Personas)),
		)
	}

	// Storage (nil means disabled)
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
