package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"aireplay/internal/config"
	"aireplay/internal/engage"
	"aireplay/internal/transport"
	logx "aireplay/pkg/logx"
)

type fakeSender struct {
	mu      sync.Mutex
	replies []string
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return transport.MessageRef{}, nil
}

func (f *fakeSender) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		t.Fatal("no reply sent")
	}
	return f.replies[len(f.replies)-1]
}

func newTestRouter(t *testing.T, cfgJSON string) (*Router, *fakeSender, *config.Manager, *engage.Service) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(cfgJSON), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfgm := config.NewManager(path)
	cfg, err := cfgm.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	eng := engage.New(cfg.Engage, nil, nil, logx.Nop())
	sender := &fakeSender{}
	return New(cfgm, eng, sender, logx.Nop()), sender, cfgm, eng
}

const baseCfg = `{
  "telegram": {"token": "t", "owner_user_ids": [10]},
  "engage": {"enabled": true, "subscribe_mode": "manual"}
}`

func update(r *Router, fromID int64, text string) {
	r.HandleUpdate(context.Background(), transport.Update{Message: &transport.Message{
		ChatID: 42,
		FromID: fromID,
		Text:   text,
	}})
}

func TestStripCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in    string
		rest  string
		isCmd bool
	}{
		{"/aireplay", "", true},
		{"/aireplay watch", "watch", true},
		{"/aireplay@mybot watch", "watch", true},
		{"/aireplay@mybot", "", true},
		{"/aireplayfoo", "", false},
		{"hello there", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		rest, ok := stripCommand(tc.in)
		if ok != tc.isCmd || rest != tc.rest {
			t.Fatalf("stripCommand(%q) = %q,%v want %q,%v", tc.in, rest, ok, tc.rest, tc.isCmd)
		}
	}
}

func TestPlainMessageTouchesSession(t *testing.T) {
	t.Parallel()
	r, _, _, eng := newTestRouter(t, baseCfg)

	update(r, 5, "just chatting")
	st, ok := eng.Status("tg:42")
	if !ok || st.LastUserAt.IsZero() || st.HistoryLen != 1 {
		t.Fatalf("activity not recorded: %+v", st)
	}
	if st.Subscribed {
		t.Fatal("manual mode must not auto-subscribe")
	}
}

func TestWatchUnwatch(t *testing.T) {
	t.Parallel()
	r, sender, _, eng := newTestRouter(t, baseCfg)

	update(r, 5, "/aireplay watch")
	if got := sender.last(t); got != "watching this chat" {
		t.Fatalf("reply %q", got)
	}
	if st, _ := eng.Status("tg:42"); !st.Subscribed {
		t.Fatal("watch did not subscribe")
	}

	update(r, 5, "/aireplay watch")
	if got := sender.last(t); got != "already watching" {
		t.Fatalf("reply %q", got)
	}

	update(r, 5, "/aireplay unwatch")
	if st, _ := eng.Status("tg:42"); st.Subscribed {
		t.Fatal("unwatch did not unsubscribe")
	}
}

func TestOwnerGating(t *testing.T) {
	t.Parallel()
	r, sender, cfgm, _ := newTestRouter(t, baseCfg)

	update(r, 99, "/aireplay off")
	if got := sender.last(t); got != "not allowed" {
		t.Fatalf("reply %q", got)
	}
	if !cfgm.Get().Engage.Enabled {
		t.Fatal("non-owner mutated config")
	}

	update(r, 10, "/aireplay off")
	if cfgm.Get().Engage.Enabled {
		t.Fatal("owner toggle did not apply")
	}
}

func TestOwnerGatingOpenWhenUnset(t *testing.T) {
	t.Parallel()
	open := `{"telegram": {"token": "t"}, "engage": {"enabled": true}}`
	r, _, cfgm, _ := newTestRouter(t, open)

	update(r, 99, "/aireplay off")
	if cfgm.Get().Engage.Enabled {
		t.Fatal("empty owner list should allow anyone")
	}
}

func TestSetCommands(t *testing.T) {
	t.Parallel()
	r, sender, cfgm, _ := newTestRouter(t, baseCfg)

	update(r, 10, "/aireplay set after 45")
	if got := cfgm.Get().Engage.AfterLastMsgMinutes; got != 45 {
		t.Fatalf("after = %d", got)
	}

	update(r, 10, "/aireplay set daily1 09:00")
	update(r, 10, "/aireplay set quiet 23:00-07:00")
	update(r, 10, "/aireplay set history 16")
	update(r, 10, "/aireplay set days 7")
	cfg := cfgm.Get().Engage
	if cfg.Daily.Time1 != "09:00" || cfg.QuietHours != "23:00-07:00" || cfg.HistoryDepth != 16 || cfg.MaxNoReplyDays != 7 {
		t.Fatalf("settings not applied: %+v", cfg)
	}

	update(r, 10, "/aireplay set daily1 -")
	if cfgm.Get().Engage.Daily.Time1 != "" {
		t.Fatal("dash did not clear daily1")
	}

	update(r, 10, "/aireplay set quiet nonsense")
	if got := sender.last(t); !strings.Contains(got, "HH:MM-HH:MM") {
		t.Fatalf("expected validation message, got %q", got)
	}
	if got := cfgm.Get().Engage.QuietHours; got != "23:00-07:00" {
		t.Fatalf("invalid value mutated config: %q", got)
	}
}

func TestSetPersistsToFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(baseCfg), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgm := config.NewManager(path)
	if _, err := cfgm.Load(); err != nil {
		t.Fatal(err)
	}
	eng := engage.New(cfgm.Get().Engage, nil, nil, logx.Nop())
	r := New(cfgm, eng, &fakeSender{}, logx.Nop())

	update(r, 10, "/aireplay set after 45")

	reloaded := config.NewManager(path)
	cfg, err := reloaded.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Engage.AfterLastMsgMinutes != 45 {
		t.Fatalf("file not rewritten: %+v", cfg.Engage)
	}
}

func TestPromptCommands(t *testing.T) {
	t.Parallel()
	r, sender, cfgm, _ := newTestRouter(t, baseCfg)

	update(r, 10, "/aireplay prompt list")
	if got := sender.last(t); !strings.Contains(got, "no custom prompts") {
		t.Fatalf("reply %q", got)
	}

	update(r, 10, "/aireplay prompt add say hi to {umo}")
	update(r, 10, "/aireplay prompt add ask about {last_user}")
	if got := cfgm.Get().Engage.CustomPrompts; len(got) != 2 {
		t.Fatalf("prompts %v", got)
	}

	update(r, 10, "/aireplay prompt list")
	if got := sender.last(t); !strings.Contains(got, "1. say hi to {umo}") {
		t.Fatalf("reply %q", got)
	}

	update(r, 10, "/aireplay prompt del 1")
	if got := cfgm.Get().Engage.CustomPrompts; len(got) != 1 || got[0] != "ask about {last_user}" {
		t.Fatalf("prompts after del: %v", got)
	}

	update(r, 10, "/aireplay prompt clear")
	if got := cfgm.Get().Engage.CustomPrompts; len(got) != 0 {
		t.Fatalf("prompts after clear: %v", got)
	}
}

func TestRemindCommands(t *testing.T) {
	t.Parallel()
	r, sender, _, eng := newTestRouter(t, baseCfg)

	update(r, 5, "/aireplay remind add once 2025-10-22 09:30 call the dentist")
	if got := sender.last(t); !strings.Contains(got, "2025-10-22 09:30") {
		t.Fatalf("reply %q", got)
	}
	update(r, 5, "/aireplay remind add daily 08:00 drink water")

	recs := eng.Reminders("tg:42")
	if len(recs) != 2 {
		t.Fatalf("reminders %v", recs)
	}
	if recs[0].Content != "call the dentist" || recs[1].Kind != engage.ReminderDaily {
		t.Fatalf("reminders %+v", recs)
	}

	update(r, 5, "/aireplay remind list")
	if got := sender.last(t); !strings.Contains(got, "drink water") {
		t.Fatalf("reply %q", got)
	}

	update(r, 5, "/aireplay remind del "+recs[0].ID)
	if left := eng.Reminders("tg:42"); len(left) != 1 {
		t.Fatalf("delete failed: %v", left)
	}

	update(r, 5, "/aireplay remind del 999")
	if got := sender.last(t); !strings.Contains(got, "not found") {
		t.Fatalf("reply %q", got)
	}

	update(r, 5, "/aireplay remind add once tomorrow 09:30 x")
	if got := sender.last(t); !strings.Contains(got, "YYYY-MM-DD HH:MM") {
		t.Fatalf("reply %q", got)
	}
}

func TestModeCommand(t *testing.T) {
	t.Parallel()
	r, sender, cfgm, _ := newTestRouter(t, baseCfg)

	update(r, 10, "/aireplay mode auto")
	if got := cfgm.Get().Engage.SubscribeMode; got != "auto" {
		t.Fatalf("mode %q", got)
	}
	update(r, 10, "/aireplay mode sometimes")
	if got := sender.last(t); !strings.Contains(got, "manual|auto") {
		t.Fatalf("reply %q", got)
	}
}

func TestShowAndHelp(t *testing.T) {
	t.Parallel()
	r, sender, _, _ := newTestRouter(t, baseCfg)

	update(r, 5, "/aireplay")
	if got := sender.last(t); !strings.Contains(got, "/aireplay watch") {
		t.Fatalf("usage missing: %q", got)
	}

	update(r, 5, "/aireplay show")
	got := sender.last(t)
	if !strings.Contains(got, "enabled: true") || !strings.Contains(got, "not tracked") {
		t.Fatalf("show output: %q", got)
	}
}
