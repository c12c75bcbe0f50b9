package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/imontero/voznote/internal/inference"
	"github.com/imontero/voznote/internal/model"
	"github.com/imontero/voznote/internal/store"
)

// ErrNotFound is returned for edits and lookups against unknown ids.
var ErrNotFound = errors.New("entry not found")

// Inferencer is the contract this flow needs from the inference client.
type Inferencer interface {
	Transcribe(ctx context.Context, audio []byte, mediaType string, referenceTime time.Time) (inference.Result, error)
}

// Forwarder is the best-effort spreadsheet side channel. Its failures
// only ever touch an entry's sync status.
type Forwarder interface {
	Enabled() bool
	Forward(entry model.Entry) error
}

// Flow orchestrates one capture cycle: recorded audio goes through
// inference, the caller confirms the draft, and the confirmed entry is
// stored and forwarded. Edits and deletions run through here as well.
type Flow struct {
	store   *store.Store
	ai      Inferencer
	forward Forwarder
	clock   func() time.Time
	logger  *log.Logger
}

// New wires the flow. The store reference is shared with the scheduler;
// the flow never keeps a private copy of the collection.
func New(st *store.Store, ai Inferencer, forward Forwarder, logger *log.Logger) *Flow {
	return &Flow{
		store:   st,
		ai:      ai,
		forward: forward,
		clock:   time.Now,
		logger:  logger,
	}
}

// Draft is the inference outcome presented for user confirmation. No
// entry exists until the draft is confirmed.
type Draft struct {
	Text         string     `json:"text"`
	DetectedDate *time.Time `json:"detectedDate,omitempty"`
}

// ProcessRecording runs inference on a finished recording and returns
// the draft. Inference errors abort the cycle; nothing is stored.
func (f *Flow) ProcessRecording(ctx context.Context, audio []byte, mediaType string) (Draft, error) {
	result, err := f.ai.Transcribe(ctx, audio, mediaType, f.clock())
	if err != nil {
		return Draft{}, err
	}
	return Draft{Text: result.Text, DetectedDate: result.DetectedDate}, nil
}

// ConfirmRequest carries the user-confirmed (possibly edited) draft.
type ConfirmRequest struct {
	Transcript string
	Duration   int
	ReminderAt *time.Time
}

// Confirm creates the entry and kicks off webhook forwarding in the
// background.
func (f *Flow) Confirm(req ConfirmRequest) (model.Entry, error) {
	if req.Transcript == "" {
		return model.Entry{}, fmt.Errorf("transcript cannot be empty")
	}

	entry := model.Entry{
		ID:         uuid.NewString(),
		CreatedAt:  f.clock(),
		Transcript: req.Transcript,
		Kind:       model.KindNote,
		Duration:   req.Duration,
		ReminderAt: req.ReminderAt,
		Notified:   false,
		SyncStatus: model.SyncSyncing,
	}
	if entry.ReminderAt != nil {
		entry.Kind = model.KindReminder
	}

	f.store.Insert(entry)
	go f.forwardEntry(entry)
	return entry, nil
}

// forwardEntry runs the best-effort webhook POST and records the
// outcome in the entry's sync status.
func (f *Flow) forwardEntry(entry model.Entry) {
	if !f.forward.Enabled() {
		f.store.Update(entry.ID, func(e *model.Entry) { e.SyncStatus = model.SyncSynced })
		return
	}
	if err := f.forward.Forward(entry); err != nil {
		f.logger.Printf("capture: forward entry %s: %v", entry.ID, err)
		f.store.Update(entry.ID, func(e *model.Entry) { e.SyncStatus = model.SyncError })
		return
	}
	f.store.Update(entry.ID, func(e *model.Entry) { e.SyncStatus = model.SyncSynced })
}

// EditRequest describes a user edit. Transcript is applied when
// non-nil. The reminder timestamp is applied when SetReminder is true;
// ReminderAt nil then clears it. Changing the reminder always clears
// the delivered flag, since it represents a new obligation.
type EditRequest struct {
	Transcript  *string
	SetReminder bool
	ReminderAt  *time.Time
}

// Edit applies a user edit to the entry with the given id.
func (f *Flow) Edit(id string, req EditRequest) (model.Entry, error) {
	ok := f.store.Update(id, func(e *model.Entry) {
		if req.Transcript != nil {
			e.Transcript = *req.Transcript
		}
		if req.SetReminder {
			e.Reschedule(req.ReminderAt)
		}
	})
	if !ok {
		return model.Entry{}, ErrNotFound
	}
	entry, _ := f.store.Get(id)
	return entry, nil
}

// Delete removes an entry permanently. Unknown ids are a no-op.
func (f *Flow) Delete(id string) {
	f.store.Delete(id)
}

// Entries lists the collection, most recent first.
func (f *Flow) Entries() []model.Entry {
	return f.store.Entries()
}
