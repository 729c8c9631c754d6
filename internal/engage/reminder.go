package engage

import (
	"errors"
	"strings"
	"time"

	"aireplay/internal/storage"
)

const (
	ReminderOnce  = "once"
	ReminderDaily = "daily"
)

var ErrReminderNotFound = errors.New("reminder not found")

// matchReminder decides whether r fires at now (wall time in the service
// zone). remove is true for one-off reminders, which fire exactly once.
// Daily reminders record the fire date so a sub-minute tick cannot deliver
// the same reminder twice; the updated record is returned for persistence.
func matchReminder(r storage.ReminderRecord, now time.Time) (fire, remove bool, updated storage.ReminderRecord) {
	switch r.Kind {
	case ReminderOnce:
		if now.Format(layoutDateMinute) == r.DueAt {
			return true, true, r
		}
	case ReminderDaily:
		if now.Format(layoutMinute) == r.TimeOfDay && r.LastFiredDate != now.Format(layoutDate) {
			r.LastFiredDate = now.Format(layoutDate)
			return true, false, r
		}
	}
	return false, false, r
}

// NormalizeOnceDue validates a one-off due string ("YYYY-MM-DD HH:MM").
func NormalizeOnceDue(raw string) (string, error) {
	t, err := time.Parse(layoutDateMinute, strings.TrimSpace(raw))
	if err != nil {
		return "", errors.New(`due time must be "YYYY-MM-DD HH:MM"`)
	}
	return t.Format(layoutDateMinute), nil
}

// NormalizeTimeOfDay validates a daily reminder time ("HH:MM").
func NormalizeTimeOfDay(raw string) (string, error) {
	t, err := time.Parse(layoutMinute, strings.TrimSpace(raw))
	if err != nil {
		return "", errors.New(`time must be "HH:MM"`)
	}
	return t.Format(layoutMinute), nil
}
