package engage

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"aireplay/internal/config"
	"aireplay/internal/storage"
	logx "aireplay/pkg/logx"
)

// Dispatcher is the outbound capability the scheduler calls when a trigger
// or reminder fires. Implementations must be safe for concurrent use; calls
// happen outside the service's state lock and may be slow.
type Dispatcher interface {
	// Proactive composes and sends an unprompted message. It returns the
	// assistant text that was sent so the service can record the turn.
	Proactive(ctx context.Context, req ProactiveRequest) (string, error)

	// Remind delivers a reminder verbatim.
	Remind(ctx context.Context, conversationID, content string) error
}

// ProactiveRequest carries everything the dispatcher needs for one send.
type ProactiveRequest struct {
	ConversationID  string
	Kind            TriggerKind
	Prompt          string // empty means "continue the conversation naturally"
	PersonaOverride string
	SessionPersona  string
	History         []storage.Turn
	Now             time.Time
	TimeFormat      string
	AppendTime      bool
}

type dispatchJob struct {
	proactive *ProactiveRequest
	remind    *storage.ReminderRecord
}

// Service owns all mutable engagement state: per-conversation sessions,
// reminders, and the parsed settings snapshot. A cron-driven tick evaluates
// triggers; inbound activity and management commands mutate state through
// the same lock, so a tick never observes a half-applied update.
type Service struct {
	log   logx.Logger
	store storage.Store // nil means memory-only
	disp  Dispatcher

	mu             sync.Mutex
	settings       Settings
	sessions       map[string]*storage.SessionRecord
	reminders      []storage.ReminderRecord
	dirtySessions  bool
	dirtyReminders bool
	nextReminderID int

	c      *cron.Cron
	runCtx context.Context

	// Injectable for tests.
	now  func() time.Time
	intn func(int) int
}

func New(cfg config.EngageConfig, store storage.Store, disp Dispatcher, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:            log,
		store:          store,
		disp:           disp,
		settings:       ParseSettings(cfg, log),
		sessions:       map[string]*storage.SessionRecord{},
		nextReminderID: 1,
		now:            time.Now,
		intn:           rand.Intn,
	}
}

// Start loads the persisted snapshot and begins ticking. An unreadable
// snapshot loads defaults and logs loudly rather than refusing to start.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx = ctx

	if s.store != nil {
		recs, err := s.store.LoadSessions(ctx)
		if err != nil {
			s.log.Error("session snapshot unreadable, starting from defaults", logx.Err(err))
		}
		for i := range recs {
			rec := recs[i]
			s.sessions[rec.ConversationID] = &rec
		}
		rems, err := s.store.LoadReminders(ctx)
		if err != nil {
			s.log.Error("reminder snapshot unreadable, starting from defaults", logx.Err(err))
		}
		s.reminders = rems
		for _, r := range rems {
			if n, err := strconv.Atoi(r.ID); err == nil && n >= s.nextReminderID {
				s.nextReminderID = n + 1
			}
		}
	}

	s.startCronLocked()
	s.log.Info("service started",
		logx.Bool("enabled", s.settings.Enabled),
		logx.String("tz", s.settings.Location.String()),
		logx.Duration("tick", s.settings.TickInterval),
		logx.Int("sessions", len(s.sessions)),
		logx.Int("reminders", len(s.reminders)))
}

// Stop halts the tick and flushes any pending state.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}

	s.mu.Lock()
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Apply installs a new config. The tick restarts only when its cadence or
// timezone changed; everything else takes effect on the next tick.
func (s *Service) Apply(cfg config.EngageConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.settings
	s.settings = ParseSettings(cfg, s.log)

	if s.c == nil {
		return
	}
	if old.TickInterval != s.settings.TickInterval || old.Location.String() != s.settings.Location.String() {
		select {
		case <-s.c.Stop().Done():
		case <-time.After(5 * time.Second):
		}
		s.startCronLocked()
	}
}

func (s *Service) startCronLocked() {
	c := cron.New(cron.WithLocation(s.settings.Location))
	// Overlap protection: a tick that outlives the interval makes the next
	// one skip, never run concurrently.
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.log})).Then(cron.FuncJob(func() {
		s.tick(s.runCtx)
	}))
	c.Schedule(cron.Every(s.settings.TickInterval), job)
	c.Start()
	s.c = c
}

// tick is one pass of the scheduler: idle checks, trigger evaluation and
// reminder matching under the lock, dispatch outside it, then one batched
// persistence flush.
func (s *Service) tick(ctx context.Context) {
	s.mu.Lock()
	st := s.settings
	if !st.Enabled {
		// Still retry a flush that failed while enabled.
		s.persistLocked(ctx)
		s.mu.Unlock()
		return
	}
	now := s.now().In(st.Location)

	var jobs []dispatchJob
	for id, rec := range s.sessions {
		if st.MaxNoReply > 0 && rec.Subscribed && !rec.LastUserAt.IsZero() && now.Sub(rec.LastUserAt) >= st.MaxNoReply {
			rec.Subscribed = false
			rec.AutoUnsubscribed = true
			s.dirtySessions = true
			s.log.Info("auto-unsubscribed idle conversation",
				logx.String("conversation", id),
				logx.Time("last_user_at", rec.LastUserAt))
			continue
		}
		if !rec.Subscribed {
			continue
		}

		kind, tag := evaluateTrigger(now, rec.LastActivityAt, rec.LastFiredTag, st)
		if kind == TriggerNone {
			continue
		}
		// The tag is recorded before dispatch: a failed send must not turn
		// into a retry storm on the next tick.
		rec.LastFiredTag = tag
		s.dirtySessions = true

		lastUser, lastAI := lastTurns(rec.History)
		var prompt string
		if tpl, ok := pickPrompt(st.Prompts, s.intn); ok {
			prompt = expandPrompt(tpl, promptContext{
				Now:            now.Format(st.TimeFormat),
				LastUser:       lastUser,
				LastAI:         lastAI,
				ConversationID: id,
			})
		}
		hist := rec.History
		if len(hist) > st.HistoryDepth {
			hist = hist[len(hist)-st.HistoryDepth:]
		}
		jobs = append(jobs, dispatchJob{proactive: &ProactiveRequest{
			ConversationID:  id,
			Kind:            kind,
			Prompt:          prompt,
			PersonaOverride: st.PersonaOverride,
			SessionPersona:  rec.PersonaID,
			History:         append([]storage.Turn(nil), hist...),
			Now:             now,
			TimeFormat:      st.TimeFormat,
			AppendTime:      st.AppendTimeField,
		}})
	}

	if len(s.reminders) > 0 {
		keep := make([]storage.ReminderRecord, 0, len(s.reminders))
		for _, r := range s.reminders {
			fire, remove, upd := matchReminder(r, now)
			if fire {
				s.dirtyReminders = true
				rem := upd
				jobs = append(jobs, dispatchJob{remind: &rem})
			}
			if !remove {
				keep = append(keep, upd)
			}
		}
		s.reminders = keep
	}
	s.mu.Unlock()

	for _, j := range jobs {
		s.dispatchOne(ctx, j, now)
	}

	s.mu.Lock()
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// dispatchOne sends one job. Errors and panics are contained so one
// conversation never aborts the rest of the tick.
func (s *Service) dispatchOne(ctx context.Context, j dispatchJob, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("dispatch panicked", logx.Any("panic", r))
		}
	}()

	if j.remind != nil {
		if err := s.disp.Remind(ctx, j.remind.ConversationID, j.remind.Content); err != nil {
			s.log.Error("reminder dispatch failed",
				logx.String("conversation", j.remind.ConversationID),
				logx.String("reminder", j.remind.ID),
				logx.Err(err))
		}
		return
	}

	reply, err := s.disp.Proactive(ctx, *j.proactive)
	if err != nil {
		s.log.Error("proactive dispatch failed",
			logx.String("conversation", j.proactive.ConversationID),
			logx.String("kind", j.proactive.Kind.String()),
			logx.Err(err))
		return
	}

	// A successful send counts as conversation activity (the interval timer
	// restarts) but not as user activity (auto-unsubscribe keeps counting).
	s.mu.Lock()
	if rec, ok := s.sessions[j.proactive.ConversationID]; ok {
		rec.LastActivityAt = now
		appendTurn(rec, "assistant", reply)
		s.dirtySessions = true
	}
	s.mu.Unlock()
}

// persistLocked flushes dirty state. A failed write keeps the dirty flag so
// the next tick retries; in-memory state stays authoritative meanwhile.
func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil {
		s.dirtySessions = false
		s.dirtyReminders = false
		return
	}
	if s.dirtySessions {
		recs := make([]storage.SessionRecord, 0, len(s.sessions))
		for _, rec := range s.sessions {
			recs = append(recs, *rec)
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].ConversationID < recs[j].ConversationID })
		if err := s.store.SaveSessions(ctx, recs); err != nil {
			s.log.Error("session snapshot write failed, will retry", logx.Err(err))
		} else {
			s.dirtySessions = false
		}
	}
	if s.dirtyReminders {
		recs := append([]storage.ReminderRecord(nil), s.reminders...)
		if err := s.store.SaveReminders(ctx, recs); err != nil {
			s.log.Error("reminder snapshot write failed, will retry", logx.Err(err))
		} else {
			s.dirtyReminders = false
		}
	}
}

// cronLogger adapts logx to the cron logger interface so skipped overlap
// ticks show up in our logs.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug(msg, logx.Any("detail", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error(msg, logx.Err(err), logx.Any("detail", kv))
}
