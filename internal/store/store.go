package store

import (
	"log"
	"sync"
	"time"

	"github.com/imontero/voznote/internal/model"
	"gorm.io/gorm"
)

// Store owns the entry collection. The in-memory slice is authoritative
// for the running session; every mutation rewrites the durable copy in
// full, and a failed write is logged and otherwise ignored.
type Store struct {
	db     *gorm.DB
	logger *log.Logger

	mu      sync.Mutex
	entries []model.Entry
}

// Open loads the persisted collection. Missing or unreadable data is
// not fatal: the store starts empty and the session continues.
func Open(db *gorm.DB, logger *log.Logger) *Store {
	s := &Store{db: db, logger: logger}

	var loaded []model.Entry
	if db == nil {
		return s
	}
	if err := db.Order("created_at DESC").Find(&loaded).Error; err != nil {
		logger.Printf("store: load failed, starting empty: %v", err)
		return s
	}
	s.entries = loaded
	return s
}

// Entries returns a snapshot of the collection, most recent first.
func (s *Store) Entries() []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (model.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			return s.entries[i], true
		}
	}
	return model.Entry{}, false
}

// Insert prepends a new entry. The caller guarantees id uniqueness.
func (s *Store) Insert(entry model.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]model.Entry{entry}, s.entries...)
	s.persistLocked()
}

// Update applies mutate to the entry with the given id and persists the
// result. Unknown ids are a no-op.
func (s *Store) Update(id string, mutate func(*model.Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			mutate(&s.entries[i])
			s.persistLocked()
			return true
		}
	}
	return false
}

// Delete removes the entry with the given id. Unknown ids are a no-op.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.persistLocked()
			return true
		}
	}
	return false
}

// DueReminders returns entries whose reminder elapsed at or before now
// and was not delivered yet. Plain notes never appear here.
func (s *Store) DueReminders(now time.Time) []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Entry
	for i := range s.entries {
		if s.entries[i].Due(now) {
			due = append(due, s.entries[i])
		}
	}
	return due
}

// persistLocked rewrites the durable copy with the current collection.
// The whole collection is written each time so a deleted entry can
// never resurface from a stale row. Callers hold s.mu.
func (s *Store) persistLocked() {
	if s.db == nil {
		return
	}

	entries := s.entries
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Entry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	})
	if err != nil {
		s.logger.Printf("store: persist failed, keeping in-memory state: %v", err)
	}
}
