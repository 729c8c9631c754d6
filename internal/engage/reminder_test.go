package engage

import (
	"testing"
	"time"

	"aireplay/internal/storage"
)

func TestMatchReminderOnce(t *testing.T) {
	t.Parallel()
	r := storage.ReminderRecord{ID: "1", Kind: ReminderOnce, DueAt: "2025-10-22 09:30"}

	due := time.Date(2025, 10, 22, 9, 30, 45, 0, time.UTC)
	fire, remove, _ := matchReminder(r, due)
	if !fire || !remove {
		t.Fatalf("expected fire+remove at due minute, got %v %v", fire, remove)
	}

	for _, tt := range []time.Time{due.Add(-time.Minute), due.Add(time.Minute), due.AddDate(0, 0, 1)} {
		if fire, _, _ := matchReminder(r, tt); fire {
			t.Fatalf("should not fire at %s", tt)
		}
	}
}

func TestMatchReminderDaily(t *testing.T) {
	t.Parallel()
	r := storage.ReminderRecord{ID: "2", Kind: ReminderDaily, TimeOfDay: "09:30"}
	now := time.Date(2025, 10, 22, 9, 30, 10, 0, time.UTC)

	fire, remove, upd := matchReminder(r, now)
	if !fire || remove {
		t.Fatalf("daily should fire without removal, got %v %v", fire, remove)
	}
	if upd.LastFiredDate != "2025-10-22" {
		t.Fatalf("last fired date %q", upd.LastFiredDate)
	}

	// Second tick inside the same minute must not refire.
	if fire, _, _ := matchReminder(upd, now.Add(30*time.Second)); fire {
		t.Fatal("refired within the same minute")
	}

	// Next day it fires again.
	if fire, _, _ := matchReminder(upd, now.AddDate(0, 0, 1)); !fire {
		t.Fatal("did not fire on the next day")
	}
}

func TestNormalizeReminderTimes(t *testing.T) {
	t.Parallel()
	if got, err := NormalizeOnceDue(" 2025-10-22 09:30 "); err != nil || got != "2025-10-22 09:30" {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := NormalizeOnceDue("tomorrow at nine"); err == nil {
		t.Fatal("expected error for free-form due time")
	}
	if got, err := NormalizeTimeOfDay("09:30"); err != nil || got != "09:30" {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := NormalizeTimeOfDay("9:75"); err == nil {
		t.Fatal("expected error for invalid minutes")
	}
}
