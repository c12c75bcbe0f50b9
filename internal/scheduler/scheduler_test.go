package scheduler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/imontero/voznote/internal/model"
	"github.com/imontero/voznote/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	bodies []string
	err    error
}

func (f *fakeNotifier) Notify(title, body string) error {
	f.bodies = append(f.bodies, body)
	return f.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Entry{}))

	return store.Open(db, log.New(io.Discard, "", 0))
}

func newTestScheduler(t *testing.T, st *store.Store, n Notifier) *Scheduler {
	t.Helper()
	return New(st, n, 15*time.Second, time.UTC, log.New(io.Discard, "", 0))
}

func ts(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func tsPtr(value string) *time.Time {
	parsed := ts(value)
	return &parsed
}

func TestTickDeliversOnce(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	notifier := &fakeNotifier{}
	sched := newTestScheduler(t, st, notifier)

	st.Insert(model.Entry{
		ID:         "r1",
		CreatedAt:  ts("2024-01-01T10:00:00Z"),
		Transcript: "pagar el alquiler",
		ReminderAt: tsPtr("2024-01-01T10:05:00Z"),
	})

	processed := sched.Tick(ts("2024-01-01T10:06:00Z"))
	assert.Equal(t, 1, processed)
	require.Len(t, notifier.bodies, 1)
	assert.Equal(t, "pagar el alquiler", notifier.bodies[0])

	entry, ok := st.Get("r1")
	require.True(t, ok)
	assert.True(t, entry.Notified)

	// A consecutive tick must not deliver again.
	processed = sched.Tick(ts("2024-01-01T10:06:15Z"))
	assert.Equal(t, 0, processed)
	assert.Len(t, notifier.bodies, 1)
}

func TestDentistScenario(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	notifier := &fakeNotifier{}
	sched := newTestScheduler(t, st, notifier)

	// Captured at 10:00, reminder detected for 10:05.
	st.Insert(model.Entry{
		ID:         "dentist",
		CreatedAt:  ts("2024-01-01T10:00:00Z"),
		Transcript: "llamar al dentista",
		Kind:       model.KindReminder,
		ReminderAt: tsPtr("2024-01-01T10:05:00Z"),
	})

	// Before the reminder elapses nothing happens.
	assert.Equal(t, 0, sched.Tick(ts("2024-01-01T10:04:00Z")))
	assert.Empty(t, notifier.bodies)

	// At 10:06 the reminder fires exactly once.
	assert.Equal(t, 1, sched.Tick(ts("2024-01-01T10:06:00Z")))
	require.Len(t, notifier.bodies, 1)
	assert.Equal(t, "llamar al dentista", notifier.bodies[0])

	entry, ok := st.Get("dentist")
	require.True(t, ok)
	assert.True(t, entry.Notified)

	// A later tick produces zero additional deliveries.
	assert.Equal(t, 0, sched.Tick(ts("2024-01-01T10:10:00Z")))
	assert.Len(t, notifier.bodies, 1)
}

func TestPlainNotesAreInert(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	notifier := &fakeNotifier{}
	sched := newTestScheduler(t, st, notifier)

	st.Insert(model.Entry{ID: "note", CreatedAt: ts("2024-01-01T10:00:00Z"), Transcript: "idea para el blog"})

	now := ts("2024-01-01T10:00:00Z")
	for i := 0; i < 10; i++ {
		now = now.Add(15 * time.Second)
		assert.Equal(t, 0, sched.Tick(now))
	}
	assert.Empty(t, notifier.bodies)

	entry, ok := st.Get("note")
	require.True(t, ok)
	assert.False(t, entry.Notified)
}

func TestDeliveryFailureStillAdvancesState(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	notifier := &fakeNotifier{err: errors.New("channel down")}
	sched := newTestScheduler(t, st, notifier)

	st.Insert(model.Entry{
		ID:         "r1",
		CreatedAt:  ts("2024-01-01T10:00:00Z"),
		Transcript: "sacar la basura",
		ReminderAt: tsPtr("2024-01-01T10:05:00Z"),
	})

	sched.Tick(ts("2024-01-01T10:06:00Z"))

	entry, ok := st.Get("r1")
	require.True(t, ok)
	assert.True(t, entry.Notified, "delivery failure must not leave the entry pending")

	// No retry on the next tick either.
	assert.Equal(t, 0, sched.Tick(ts("2024-01-01T10:07:00Z")))
	assert.Len(t, notifier.bodies, 1)
}

func TestRescheduledReminderFiresAgain(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	notifier := &fakeNotifier{}
	sched := newTestScheduler(t, st, notifier)

	st.Insert(model.Entry{
		ID:         "r1",
		CreatedAt:  ts("2024-01-01T10:00:00Z"),
		Transcript: "revisar el horno",
		ReminderAt: tsPtr("2024-01-01T10:05:00Z"),
	})

	sched.Tick(ts("2024-01-01T10:06:00Z"))
	require.Len(t, notifier.bodies, 1)

	// Editing the reminder date is a new obligation.
	st.Update("r1", func(e *model.Entry) {
		e.Reschedule(tsPtr("2024-01-01T11:00:00Z"))
	})

	entry, ok := st.Get("r1")
	require.True(t, ok)
	assert.False(t, entry.Notified)

	assert.Equal(t, 0, sched.Tick(ts("2024-01-01T10:30:00Z")))
	assert.Equal(t, 1, sched.Tick(ts("2024-01-01T11:01:00Z")))
	assert.Len(t, notifier.bodies, 2)
}

func TestBatchOfDueRemindersInOneTick(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	notifier := &fakeNotifier{}
	sched := newTestScheduler(t, st, notifier)

	for i := 0; i < 3; i++ {
		st.Insert(model.Entry{
			ID:         fmt.Sprintf("r%d", i),
			CreatedAt:  ts("2024-01-01T10:00:00Z").Add(time.Duration(i) * time.Second),
			Transcript: fmt.Sprintf("tarea %d", i),
			ReminderAt: tsPtr("2024-01-01T10:05:00Z"),
		})
	}

	assert.Equal(t, 3, sched.Tick(ts("2024-01-01T10:06:00Z")))
	assert.Len(t, notifier.bodies, 3)
	for _, entry := range st.Entries() {
		assert.True(t, entry.Notified)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	sched := New(st, &fakeNotifier{}, time.Hour, time.UTC, log.New(io.Discard, "", 0))

	require.NoError(t, sched.Start())
	sched.Stop()
}
