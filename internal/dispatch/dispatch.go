// Package dispatch turns a trigger decision into an outbound chat message:
// it resolves the persona, asks the model for the next turn, applies the
// optional timestamp prefix, and sends through the transport under a global
// rate limit.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"aireplay/internal/engage"
	"aireplay/internal/llm"
	"aireplay/internal/transport"
	logx "aireplay/pkg/logx"
)

const defaultRatePerSec = 3

// Completer is the model capability the dispatcher composes with.
type Completer interface {
	ResolvePersona(overrideID, sessionID string) string
	Continue(ctx context.Context, req llm.Request) (string, error)
}

// Sender is the transport capability.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Dispatcher implements engage.Dispatcher.
type Dispatcher struct {
	log  logx.Logger
	llm  Completer
	send Sender

	mu      sync.Mutex
	limiter *rate.Limiter
}

func New(completer Completer, sender Sender, ratePerSec int, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	return &Dispatcher{
		log:     log,
		llm:     completer,
		send:    sender,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// SetRate adjusts the outbound send limit on config reload.
func (d *Dispatcher) SetRate(ratePerSec int) {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	d.mu.Lock()
	d.limiter.SetLimit(rate.Limit(ratePerSec))
	d.limiter.SetBurst(ratePerSec)
	d.mu.Unlock()
}

// Proactive composes one unprompted message and sends it. The returned text
// is the assistant turn as delivered (without the timestamp prefix).
func (d *Dispatcher) Proactive(ctx context.Context, req engage.ProactiveRequest) (string, error) {
	target, err := transport.ParseConversationID(req.ConversationID)
	if err != nil {
		return "", err
	}

	reply, err := d.llm.Continue(ctx, llm.Request{
		System:  d.llm.ResolvePersona(req.PersonaOverride, req.SessionPersona),
		History: req.History,
		Prompt:  req.Prompt,
	})
	if err != nil {
		return "", fmt.Errorf("compose: %w", err)
	}

	text := reply
	if req.AppendTime {
		text = "[" + req.Now.Format(req.TimeFormat) + "] " + text
	}
	if err := d.deliver(ctx, target, text); err != nil {
		return "", err
	}
	d.log.Info("proactive message sent",
		logx.String("conversation", req.ConversationID),
		logx.String("kind", req.Kind.String()),
		logx.Int("chars", len(text)))
	return reply, nil
}

// Remind delivers a reminder verbatim.
func (d *Dispatcher) Remind(ctx context.Context, conversationID, content string) error {
	target, err := transport.ParseConversationID(conversationID)
	if err != nil {
		return err
	}
	if err := d.deliver(ctx, target, content); err != nil {
		return err
	}
	d.log.Info("reminder sent", logx.String("conversation", conversationID))
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, target transport.ChatTarget, text string) error {
	d.mu.Lock()
	limiter := d.limiter
	d.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := limiter.Wait(wctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if _, err := d.send.SendText(ctx, target, text, nil); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

var _ engage.Dispatcher = (*Dispatcher)(nil)
