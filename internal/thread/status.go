package thread

import (
	"fmt"
	"time"
)

// ValidStatus reports whether s is one of the known thread statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusUnread, StatusNeedsReply, StatusWaiting, StatusQualified,
		StatusSnoozed, StatusArchived:
		return true
	}
	return false
}

// CanTransition reports whether a thread may move from one status to another.
// Archived is terminal for automated transitions; reopening is the one move
// that only a manual action performs (see Reopen).
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from == StatusArchived {
		return false
	}
	switch to {
	case StatusArchived, StatusSnoozed:
		// any non-terminal state can be archived or snoozed
		return true
	case StatusUnread, StatusNeedsReply, StatusWaiting, StatusQualified:
		return true
	}
	return false
}

// Snooze suppresses the thread until the given time. Archived threads stay
// archived.
func (t *Thread) Snooze(until time.Time) error {
	if t.Status == StatusArchived {
		return fmt.Errorf("cannot snooze archived thread %s", t.ID)
	}
	t.Status = StatusSnoozed
	t.IsSnoozed = true
	t.SnoozeUntil = &until
	return nil
}

// Archive moves the thread to the terminal archived state.
func (t *Thread) Archive() {
	t.Status = StatusArchived
	t.IsSnoozed = false
	t.SnoozeUntil = nil
}

// Reopen returns an archived thread to the active queue. This is the one
// transition with no automated trigger; only an explicit manual action calls it.
func (t *Thread) Reopen() error {
	if t.Status != StatusArchived {
		return fmt.Errorf("thread %s is not archived", t.ID)
	}
	t.Status = StatusNeedsReply
	return nil
}

// ResolveSnooze reactivates a snoozed thread whose window has elapsed.
// Evaluated lazily on read; returns true if the thread changed.
func (t *Thread) ResolveSnooze(now time.Time) bool {
	if !t.IsSnoozed || t.SnoozeUntil == nil {
		return false
	}
	if now.Before(*t.SnoozeUntil) {
		return false
	}
	t.Status = StatusNeedsReply
	t.IsSnoozed = false
	t.SnoozeUntil = nil
	return true
}
