package engage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"aireplay/internal/storage"
	logx "aireplay/pkg/logx"
)

// historyLimit bounds the per-conversation turn cache. Old turns fall off
// the front.
const historyLimit = 32

// ConversationStatus is a read-only snapshot of one session, used by the
// management command surface.
type ConversationStatus struct {
	ConversationID   string
	Subscribed       bool
	AutoUnsubscribed bool
	LastUserAt       time.Time
	LastActivityAt   time.Time
	LastFiredTag     string
	PersonaID        string
	HistoryLen       int
}

// Touch records an inbound user message: it refreshes both activity clocks,
// caches the turn, and resubscribes the conversation when the mode is auto
// or a previous unsubscribe was automatic. A manual unwatch stays off until
// an explicit Watch.
//
// Touch does not flush; activity writes ride along with the next tick's
// batched persistence.
func (s *Service) Touch(conversationID, text string) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(conversationID)
	rec.LastUserAt = now
	rec.LastActivityAt = now
	if text != "" {
		appendTurn(rec, "user", text)
	}
	if !rec.Subscribed && (s.settings.AutoSubscribe || rec.AutoUnsubscribed) {
		rec.Subscribed = true
		rec.AutoUnsubscribed = false
		s.log.Info("conversation resubscribed", logx.String("conversation", conversationID))
	}
	s.dirtySessions = true
}

// Watch explicitly subscribes a conversation. Returns false if it was
// already subscribed.
func (s *Service) Watch(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(conversationID)
	if rec.Subscribed {
		return false
	}
	rec.Subscribed = true
	rec.AutoUnsubscribed = false
	rec.LastActivityAt = s.now()
	s.dirtySessions = true
	s.persistLocked(context.Background())
	return true
}

// Unwatch explicitly unsubscribes. Returns false if it was not subscribed.
func (s *Service) Unwatch(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[conversationID]
	if !ok || !rec.Subscribed {
		return false
	}
	rec.Subscribed = false
	rec.AutoUnsubscribed = false
	s.dirtySessions = true
	s.persistLocked(context.Background())
	return true
}

// SetPersona pins a persona id for one conversation. Empty clears it.
func (s *Service) SetPersona(conversationID, personaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(conversationID)
	rec.PersonaID = personaID
	s.dirtySessions = true
	s.persistLocked(context.Background())
}

// Status returns a snapshot of one conversation's session, if tracked.
func (s *Service) Status(conversationID string) (ConversationStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[conversationID]
	if !ok {
		return ConversationStatus{ConversationID: conversationID}, false
	}
	return ConversationStatus{
		ConversationID:   rec.ConversationID,
		Subscribed:       rec.Subscribed,
		AutoUnsubscribed: rec.AutoUnsubscribed,
		LastUserAt:       rec.LastUserAt,
		LastActivityAt:   rec.LastActivityAt,
		LastFiredTag:     rec.LastFiredTag,
		PersonaID:        rec.PersonaID,
		HistoryLen:       len(rec.History),
	}, true
}

// AddOnceReminder schedules a one-off reminder ("YYYY-MM-DD HH:MM").
func (s *Service) AddOnceReminder(conversationID, content, dueAt string) (storage.ReminderRecord, error) {
	due, err := NormalizeOnceDue(dueAt)
	if err != nil {
		return storage.ReminderRecord{}, err
	}
	return s.addReminder(storage.ReminderRecord{
		ConversationID: conversationID,
		Content:        content,
		Kind:           ReminderOnce,
		DueAt:          due,
	}), nil
}

// AddDailyReminder schedules a recurring reminder ("HH:MM").
func (s *Service) AddDailyReminder(conversationID, content, timeOfDay string) (storage.ReminderRecord, error) {
	tod, err := NormalizeTimeOfDay(timeOfDay)
	if err != nil {
		return storage.ReminderRecord{}, err
	}
	return s.addReminder(storage.ReminderRecord{
		ConversationID: conversationID,
		Content:        content,
		Kind:           ReminderDaily,
		TimeOfDay:      tod,
	}), nil
}

func (s *Service) addReminder(rec storage.ReminderRecord) storage.ReminderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = strconv.Itoa(s.nextReminderID)
	s.nextReminderID++
	rec.CreatedAt = s.now()
	s.reminders = append(s.reminders, rec)
	s.dirtyReminders = true
	s.persistLocked(context.Background())
	return rec
}

// Reminders lists the reminders targeting one conversation, oldest first.
func (s *Service) Reminders(conversationID string) []storage.ReminderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []storage.ReminderRecord
	for _, r := range s.reminders {
		if r.ConversationID == conversationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// DeleteReminder removes a reminder by id, scoped to the conversation that
// owns it.
func (s *Service) DeleteReminder(conversationID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.reminders {
		if r.ID == id && r.ConversationID == conversationID {
			s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
			s.dirtyReminders = true
			s.persistLocked(context.Background())
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrReminderNotFound, id)
}

func (s *Service) getOrCreateLocked(conversationID string) *storage.SessionRecord {
	rec, ok := s.sessions[conversationID]
	if !ok {
		rec = &storage.SessionRecord{ConversationID: conversationID}
		s.sessions[conversationID] = rec
	}
	return rec
}

func appendTurn(rec *storage.SessionRecord, role, content string) {
	rec.History = append(rec.History, storage.Turn{Role: role, Content: content})
	if len(rec.History) > historyLimit {
		rec.History = rec.History[len(rec.History)-historyLimit:]
	}
}
