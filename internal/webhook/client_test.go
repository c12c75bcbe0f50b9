package webhook

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imontero/voznote/internal/model"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestForwardSendsEntryFields(t *testing.T) {
	t.Parallel()

	received := make(chan map[string]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		received <- body
	}))
	defer server.Close()

	reminderAt := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	client := New(server.URL, "ana@example.com", testLogger())

	err := client.Forward(model.Entry{
		ID:         "a",
		CreatedAt:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Transcript: "llamar al dentista",
		Kind:       model.KindReminder,
		ReminderAt: &reminderAt,
	})
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}

	body := <-received
	if body["transcription"] != "llamar al dentista" {
		t.Fatalf("unexpected transcription: %q", body["transcription"])
	}
	if body["type"] != "reminder" {
		t.Fatalf("unexpected type: %q", body["type"])
	}
	if body["date"] != "01/01/2024" || body["time"] != "10:00" {
		t.Fatalf("unexpected date/time: %q %q", body["date"], body["time"])
	}
	if body["reminderDate"] != "2024-01-01T10:05:00Z" {
		t.Fatalf("unexpected reminderDate: %q", body["reminderDate"])
	}
	if body["targetEmail"] != "ana@example.com" {
		t.Fatalf("unexpected targetEmail: %q", body["targetEmail"])
	}
}

func TestForwardIgnoresResponseStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "", testLogger())
	// The original caller posted in no-cors mode and never saw the
	// response; only transport failures count.
	if err := client.Forward(model.Entry{ID: "a", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("non-2xx response should not be an error: %v", err)
	}
}

func TestForwardTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(server.URL, "", testLogger())
	if err := client.Forward(model.Entry{ID: "a", CreatedAt: time.Now()}); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestDisabledClient(t *testing.T) {
	t.Parallel()

	client := New("", "", testLogger())
	if client.Enabled() {
		t.Fatalf("client without URL should be disabled")
	}
	if err := client.Forward(model.Entry{ID: "a"}); err == nil {
		t.Fatalf("forwarding without a URL should fail")
	}
}
