package storage

// Package storage persists the engagement state across restarts.
//
// It currently supports:
//   - Per-conversation sessions (subscription, timers, recent history)
//   - Scheduled reminders
