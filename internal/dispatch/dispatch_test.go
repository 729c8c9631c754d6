package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aireplay/internal/engage"
	"aireplay/internal/llm"
	"aireplay/internal/transport"
	logx "aireplay/pkg/logx"
)

type fakeCompleter struct {
	system string
	prompt string
	reply  string
	err    error
}

func (f *fakeCompleter) ResolvePersona(overrideID, sessionID string) string {
	if overrideID != "" {
		return "override:" + overrideID
	}
	if sessionID != "" {
		return "session:" + sessionID
	}
	return ""
}

func (f *fakeCompleter) Continue(ctx context.Context, req llm.Request) (string, error) {
	f.system = req.System
	f.prompt = req.Prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	to   []transport.ChatTarget
	err  error
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return transport.MessageRef{}, f.err
	}
	f.sent = append(f.sent, text)
	f.to = append(f.to, to)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func TestProactive(t *testing.T) {
	t.Parallel()
	comp := &fakeCompleter{reply: "how has your day been?"}
	sender := &fakeSender{}
	d := New(comp, sender, 10, logx.Nop())

	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	reply, err := d.Proactive(context.Background(), engage.ProactiveRequest{
		ConversationID: "tg:42:7",
		Kind:           engage.TriggerInterval,
		Prompt:         "say hi",
		SessionPersona: "stoic",
		Now:            now,
		TimeFormat:     "2006-01-02 15:04",
		AppendTime:     true,
	})
	if err != nil {
		t.Fatalf("proactive: %v", err)
	}
	if reply != "how has your day been?" {
		t.Fatalf("reply %q", reply)
	}
	if comp.system != "session:stoic" || comp.prompt != "say hi" {
		t.Fatalf("completer saw system=%q prompt=%q", comp.system, comp.prompt)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages", len(sender.sent))
	}
	if want := "[2025-06-01 10:30] how has your day been?"; sender.sent[0] != want {
		t.Fatalf("sent %q, want %q", sender.sent[0], want)
	}
	if sender.to[0] != (transport.ChatTarget{ChatID: 42, ThreadID: 7}) {
		t.Fatalf("target %+v", sender.to[0])
	}
}

func TestProactiveNoTimestampPrefix(t *testing.T) {
	t.Parallel()
	comp := &fakeCompleter{reply: "hey"}
	sender := &fakeSender{}
	d := New(comp, sender, 10, logx.Nop())

	if _, err := d.Proactive(context.Background(), engage.ProactiveRequest{
		ConversationID: "tg:1",
		Now:            time.Now(),
		TimeFormat:     "15:04",
	}); err != nil {
		t.Fatalf("proactive: %v", err)
	}
	if sender.sent[0] != "hey" {
		t.Fatalf("sent %q", sender.sent[0])
	}
}

func TestProactiveComposeFailureDoesNotSend(t *testing.T) {
	t.Parallel()
	comp := &fakeCompleter{err: errors.New("model down")}
	sender := &fakeSender{}
	d := New(comp, sender, 10, logx.Nop())

	if _, err := d.Proactive(context.Background(), engage.ProactiveRequest{ConversationID: "tg:1", Now: time.Now()}); err == nil {
		t.Fatal("expected error")
	}
	if len(sender.sent) != 0 {
		t.Fatal("message sent despite compose failure")
	}
}

func TestProactiveBadConversationID(t *testing.T) {
	t.Parallel()
	d := New(&fakeCompleter{reply: "x"}, &fakeSender{}, 10, logx.Nop())
	if _, err := d.Proactive(context.Background(), engage.ProactiveRequest{ConversationID: "discord:1"}); err == nil {
		t.Fatal("expected error for foreign conversation id")
	}
}

func TestRemind(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	d := New(&fakeCompleter{}, sender, 10, logx.Nop())

	if err := d.Remind(context.Background(), "tg:42", "drink water"); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "drink water" {
		t.Fatalf("sent %v", sender.sent)
	}
}

func TestRemindSendFailure(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{err: errors.New("telegram 429")}
	d := New(&fakeCompleter{}, sender, 10, logx.Nop())
	if err := d.Remind(context.Background(), "tg:42", "x"); err == nil {
		t.Fatal("expected error")
	}
}
