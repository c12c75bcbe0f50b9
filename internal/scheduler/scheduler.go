package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/imontero/voznote/internal/model"
	"github.com/robfig/cron/v3"
)

// Notifier is the delivery side effect for a due reminder. Delivery is
// best-effort: an error is logged and the entry still advances.
type Notifier interface {
	Notify(title, body string) error
}

// Store is the slice of the entry store the scheduler needs.
type Store interface {
	DueReminders(now time.Time) []model.Entry
	Update(id string, mutate func(*model.Entry)) bool
}

// Scheduler polls the store on a fixed interval and delivers every due,
// undelivered reminder exactly once per obligation. The state
// transition happens in the same tick that observes the entry as due,
// and ticks never overlap, so an entry cannot be delivered twice while
// the process keeps running.
type Scheduler struct {
	store    Store
	notifier Notifier
	cron     *cron.Cron
	clock    func() time.Time
	interval time.Duration
	logger   *log.Logger
}

// New creates a scheduler. interval is a tunable, not a correctness
// knob; 15s is the default wired in from config.
func New(store Store, notifier Notifier, interval time.Duration, location *time.Location, logger *log.Logger) *Scheduler {
	c := cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{
		store:    store,
		notifier: notifier,
		cron:     c,
		clock:    time.Now,
		interval: interval,
		logger:   logger,
	}
}

// Start registers the polling job and starts the loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Tick(s.clock())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Tick runs one evaluation pass against a single snapshot of now and
// returns the number of reminders processed. It is exported so tests
// can drive the scheduler with a simulated clock.
func (s *Scheduler) Tick(now time.Time) int {
	due := s.store.DueReminders(now)
	for _, entry := range due {
		if err := s.notifier.Notify("Reminder", entry.Transcript); err != nil {
			s.logger.Printf("scheduler: deliver reminder %s: %v", entry.ID, err)
		}
		s.store.Update(entry.ID, func(e *model.Entry) {
			e.Notified = true
		})
	}
	return len(due)
}
