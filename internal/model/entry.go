package model

import "time"

// SyncStatus reflects the last attempt to forward an entry to the
// configured spreadsheet webhook. It has no bearing on reminder logic.
type SyncStatus string

const (
	SyncSyncing SyncStatus = "Syncing"
	SyncSynced  SyncStatus = "Synced"
	SyncError   SyncStatus = "Error"
)

// Kind distinguishes plain notes from reminders at capture time.
type Kind string

const (
	KindNote     Kind = "note"
	KindReminder Kind = "reminder"
)

// Entry represents one captured voice note, optionally carrying a
// future reminder timestamp.
type Entry struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time  `gorm:"index" json:"createdAt"`
	Transcript string     `gorm:"type:text" json:"transcript"`
	Kind       Kind       `gorm:"not null;default:note" json:"kind"`
	Duration   int        `json:"duration"`
	ReminderAt *time.Time `json:"reminderAt,omitempty"`
	Notified   bool       `json:"notified"`
	SyncStatus SyncStatus `json:"syncStatus"`
}

// Due reports whether the entry's reminder has elapsed and was not
// delivered yet. Entries without a reminder are never due.
func (e *Entry) Due(now time.Time) bool {
	return e.ReminderAt != nil && !e.Notified && !e.ReminderAt.After(now)
}

// Reschedule replaces the reminder timestamp. A new timestamp is a new
// obligation, so the delivered flag is cleared; a nil timestamp turns
// the entry back into a plain note.
func (e *Entry) Reschedule(at *time.Time) {
	e.ReminderAt = at
	e.Notified = false
	if at == nil {
		e.Kind = KindNote
	} else {
		e.Kind = KindReminder
	}
}
