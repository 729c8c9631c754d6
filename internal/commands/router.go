// Package commands implements the /aireplay management surface: every
// subcommand is a 1:1 mutation on the config file, a session, or the
// reminder store, followed by an immediate flush.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"aireplay/internal/config"
	"aireplay/internal/engage"
	"aireplay/internal/transport"
	logx "aireplay/pkg/logx"
)

const usage = `aireplay commands:
  /aireplay on|off              enable or disable proactive messages
  /aireplay watch|unwatch       subscribe or unsubscribe this chat
  /aireplay show                settings and this chat's status
  /aireplay mode manual|auto    subscription mode
  /aireplay set after <min>     idle minutes before a follow-up (0 = off)
  /aireplay set daily1 <HH:MM|->
  /aireplay set daily2 <HH:MM|->
  /aireplay set quiet <HH:MM-HH:MM|->
  /aireplay set history <n>     turns of context for the model
  /aireplay set days <n>        idle days before auto-unsubscribe (0 = off)
  /aireplay prompt list|add <text>|del <n>|clear
  /aireplay remind add once <YYYY-MM-DD> <HH:MM> <text>
  /aireplay remind add daily <HH:MM> <text>
  /aireplay remind list
  /aireplay remind del <id>`

// Sender is the reply channel back into the chat.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Router consumes inbound updates: plain messages feed the engagement
// engine's activity tracking, /aireplay messages are management commands.
type Router struct {
	log  logx.Logger
	cfgm *config.Manager
	eng  *engage.Service
	send Sender
}

func New(cfgm *config.Manager, eng *engage.Service, sender Sender, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{log: log, cfgm: cfgm, eng: eng, send: sender}
}

// HandleUpdate processes one inbound update.
func (r *Router) HandleUpdate(ctx context.Context, u transport.Update) {
	if u.Message == nil {
		return
	}
	msg := u.Message
	target := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	convID := transport.ConversationID(target)

	text := strings.TrimSpace(msg.Text)
	cmd, isCmd := stripCommand(text)
	if !isCmd {
		if text != "" {
			r.eng.Touch(convID, text)
		}
		return
	}

	reply := r.dispatchCommand(ctx, convID, msg.FromID, cmd)
	if reply == "" {
		return
	}
	if _, err := r.send.SendText(ctx, target, reply, nil); err != nil {
		r.log.Error("command reply failed", logx.String("conversation", convID), logx.Err(err))
	}
}

// stripCommand recognizes "/aireplay[@botname] ..." and returns the argument
// tail.
func stripCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/aireplay") {
		return "", false
	}
	rest := text[len("/aireplay"):]
	if strings.HasPrefix(rest, "@") {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return "", true
		}
		rest = rest[i:]
	} else if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false // e.g. "/aireplayfoo"
	}
	return strings.TrimSpace(rest), true
}

func (r *Router) dispatchCommand(ctx context.Context, convID string, fromID int64, cmd string) string {
	args := strings.Fields(cmd)
	if len(args) == 0 || args[0] == "help" {
		return usage
	}

	switch args[0] {
	case "on", "off":
		return r.ownerGated(fromID, func() string { return r.setEnabled(ctx, args[0] == "on") })
	case "watch":
		if r.eng.Watch(convID) {
			return "watching this chat"
		}
		return "already watching"
	case "unwatch":
		if r.eng.Unwatch(convID) {
			return "stopped watching this chat"
		}
		return "was not watching"
	case "show", "status":
		return r.show(convID)
	case "mode":
		if len(args) != 2 || (args[1] != "manual" && args[1] != "auto") {
			return "usage: /aireplay mode manual|auto"
		}
		return r.ownerGated(fromID, func() string {
			return r.updateConfig(ctx, fmt.Sprintf("mode = %s", args[1]), func(c *config.Config) {
				c.Engage.SubscribeMode = args[1]
			})
		})
	case "set":
		return r.ownerGated(fromID, func() string { return r.set(ctx, args[1:]) })
	case "prompt":
		return r.ownerGated(fromID, func() string { return r.prompt(ctx, args[1:]) })
	case "remind":
		return r.remind(convID, args[1:])
	default:
		return "unknown command; /aireplay help"
	}
}

func (r *Router) ownerGated(fromID int64, fn func() string) string {
	owners := r.cfgm.Get().Telegram.OwnerUserIDs
	if len(owners) == 0 {
		return fn()
	}
	for _, id := range owners {
		if id == fromID {
			return fn()
		}
	}
	return "not allowed"
}

func (r *Router) setEnabled(ctx context.Context, on bool) string {
	return r.updateConfig(ctx, fmt.Sprintf("enabled = %v", on), func(c *config.Config) {
		c.Engage.Enabled = on
	})
}

func (r *Router) set(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return "usage: /aireplay set after|daily1|daily2|quiet|history|days <value>"
	}
	key, val := args[0], args[1]

	switch key {
	case "after":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return "after must be a non-negative number of minutes"
		}
		return r.updateConfig(ctx, fmt.Sprintf("after = %d min", n), func(c *config.Config) {
			c.Engage.AfterLastMsgMinutes = n
		})
	case "daily1", "daily2":
		norm := ""
		if val != "-" {
			var err error
			if norm, err = engage.NormalizeTimeOfDay(val); err != nil {
				return err.Error()
			}
		}
		return r.updateConfig(ctx, fmt.Sprintf("%s = %q", key, norm), func(c *config.Config) {
			if key == "daily1" {
				c.Engage.Daily.Time1 = norm
			} else {
				c.Engage.Daily.Time2 = norm
			}
		})
	case "quiet":
		norm := ""
		if val != "-" {
			if _, ok := engage.ParseQuietWindow(val); !ok {
				return `quiet hours must be "HH:MM-HH:MM"`
			}
			norm = val
		}
		return r.updateConfig(ctx, fmt.Sprintf("quiet = %q", norm), func(c *config.Config) {
			c.Engage.QuietHours = norm
		})
	case "history":
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return "history must be a positive number of turns"
		}
		return r.updateConfig(ctx, fmt.Sprintf("history = %d", n), func(c *config.Config) {
			c.Engage.HistoryDepth = n
		})
	case "days":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return "days must be a non-negative number"
		}
		return r.updateConfig(ctx, fmt.Sprintf("days = %d", n), func(c *config.Config) {
			c.Engage.MaxNoReplyDays = n
		})
	default:
		return "unknown setting " + key
	}
}

func (r *Router) prompt(ctx context.Context, args []string) string {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		prompts := r.cfgm.Get().Engage.CustomPrompts
		if len(prompts) == 0 {
			return "no custom prompts; the model continues conversations naturally"
		}
		var b strings.Builder
		for i, p := range prompts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p)
		}
		return strings.TrimRight(b.String(), "\n")
	case "add":
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			return "usage: /aireplay prompt add <template>"
		}
		return r.updateConfig(ctx, "prompt added", func(c *config.Config) {
			c.Engage.CustomPrompts = append(c.Engage.CustomPrompts, text)
		})
	case "del":
		if len(args) != 2 {
			return "usage: /aireplay prompt del <n>"
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return "prompt number must be positive"
		}
		if n > len(r.cfgm.Get().Engage.CustomPrompts) {
			return "no such prompt"
		}
		return r.updateConfig(ctx, fmt.Sprintf("prompt %d removed", n), func(c *config.Config) {
			p := c.Engage.CustomPrompts
			if n <= len(p) {
				c.Engage.CustomPrompts = append(p[:n-1], p[n:]...)
			}
		})
	case "clear":
		return r.updateConfig(ctx, "prompts cleared", func(c *config.Config) {
			c.Engage.CustomPrompts = nil
		})
	default:
		return "usage: /aireplay prompt list|add|del|clear"
	}
}

func (r *Router) remind(convID string, args []string) string {
	if len(args) == 0 {
		return "usage: /aireplay remind add|list|del"
	}
	switch args[0] {
	case "add":
		if len(args) < 3 {
			return "usage: /aireplay remind add once <YYYY-MM-DD> <HH:MM> <text> | add daily <HH:MM> <text>"
		}
		switch args[1] {
		case "once":
			if len(args) < 5 {
				return "usage: /aireplay remind add once <YYYY-MM-DD> <HH:MM> <text>"
			}
			due := args[2] + " " + args[3]
			content := strings.Join(args[4:], " ")
			rec, err := r.eng.AddOnceReminder(convID, content, due)
			if err != nil {
				return err.Error()
			}
			return fmt.Sprintf("reminder %s set for %s", rec.ID, rec.DueAt)
		case "daily":
			if len(args) < 4 {
				return "usage: /aireplay remind add daily <HH:MM> <text>"
			}
			content := strings.Join(args[3:], " ")
			rec, err := r.eng.AddDailyReminder(convID, content, args[2])
			if err != nil {
				return err.Error()
			}
			return fmt.Sprintf("daily reminder %s set for %s", rec.ID, rec.TimeOfDay)
		default:
			return "reminder kind must be once or daily"
		}
	case "list":
		recs := r.eng.Reminders(convID)
		if len(recs) == 0 {
			return "no reminders"
		}
		var b strings.Builder
		for _, rec := range recs {
			when := rec.DueAt
			if rec.Kind == engage.ReminderDaily {
				when = "daily " + rec.TimeOfDay
			}
			fmt.Fprintf(&b, "%s. [%s] %s\n", rec.ID, when, rec.Content)
		}
		return strings.TrimRight(b.String(), "\n")
	case "del":
		if len(args) != 2 {
			return "usage: /aireplay remind del <id>"
		}
		if err := r.eng.DeleteReminder(convID, args[1]); err != nil {
			return err.Error()
		}
		return "reminder " + args[1] + " deleted"
	default:
		return "usage: /aireplay remind add|list|del"
	}
}

func (r *Router) show(convID string) string {
	cfg := r.cfgm.Get().Engage
	var b strings.Builder

	fmt.Fprintf(&b, "enabled: %v\n", cfg.Enabled)
	fmt.Fprintf(&b, "mode: %s\n", orDefault(cfg.SubscribeMode, "manual"))
	if cfg.AfterLastMsgMinutes > 0 {
		fmt.Fprintf(&b, "follow-up after: %d min idle\n", cfg.AfterLastMsgMinutes)
	} else {
		b.WriteString("follow-up after: off\n")
	}
	fmt.Fprintf(&b, "daily: %s %s\n", orDefault(cfg.Daily.Time1, "-"), orDefault(cfg.Daily.Time2, "-"))
	fmt.Fprintf(&b, "quiet: %s\n", orDefault(cfg.QuietHours, "-"))
	fmt.Fprintf(&b, "auto-unsubscribe: %s\n", offOrDays(cfg.MaxNoReplyDays))
	fmt.Fprintf(&b, "prompts: %d\n", len(cfg.CustomPrompts))

	st, tracked := r.eng.Status(convID)
	switch {
	case !tracked:
		b.WriteString("this chat: not tracked")
	case st.Subscribed:
		fmt.Fprintf(&b, "this chat: watching (history %d turns)", st.HistoryLen)
	case st.AutoUnsubscribed:
		b.WriteString("this chat: auto-unsubscribed (write anything to resume)")
	default:
		b.WriteString("this chat: not watching")
	}
	return b.String()
}

func (r *Router) updateConfig(ctx context.Context, okMsg string, mutate func(*config.Config)) string {
	if _, err := r.cfgm.Update(ctx, mutate); err != nil {
		r.log.Error("config update failed", logx.Err(err))
		return "config update failed: " + err.Error()
	}
	return okMsg
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func offOrDays(n int) string {
	if n <= 0 {
		return "off"
	}
	return fmt.Sprintf("after %d days", n)
}
