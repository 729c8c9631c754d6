package engage

import (
	"time"
)

// TriggerKind classifies a proactive trigger decision.
type TriggerKind int

const (
	TriggerNone TriggerKind = iota
	TriggerInterval
	TriggerDaily
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerInterval:
		return "interval"
	case TriggerDaily:
		return "daily"
	default:
		return "none"
	}
}

// evaluateTrigger decides whether one conversation fires on this tick.
//
// Quiet hours suppress everything and leave the dedup tag untouched.
// The interval trigger is checked first; the two kinds are mutually
// exclusive within a tick. The returned tag is the minute-bucketed dedup
// tag the caller must record so sub-minute ticks fire at most once.
func evaluateTrigger(now time.Time, lastActivity time.Time, lastTag string, st Settings) (TriggerKind, string) {
	if st.Quiet.Contains(now) {
		return TriggerNone, ""
	}

	if st.AfterLastMsg > 0 && !lastActivity.IsZero() && now.Sub(lastActivity) >= st.AfterLastMsg {
		tag := "interval:" + now.Format(layoutMinute)
		if tag != lastTag {
			return TriggerInterval, tag
		}
		return TriggerNone, ""
	}

	hhmm := now.Format(layoutMinute)
	for _, dt := range st.DailyTimes {
		if dt != hhmm {
			continue
		}
		tag := "daily:" + hhmm + ":" + now.Format(layoutDate)
		if tag != lastTag {
			return TriggerDaily, tag
		}
		return TriggerNone, ""
	}
	return TriggerNone, ""
}
