// Package engage is the proactive-engagement scheduler: it decides when a
// conversation gets an unprompted message (idle follow-ups, daily check-ins,
// reminders) and whether one is currently allowed (quiet hours, subscription
// state, auto-unsubscribe).
//
// All timing operates at minute granularity. A periodic tick evaluates every
// tracked conversation against a settings snapshot; dedup tags keep a
// sub-minute tick from firing the same bucket twice.
package engage
