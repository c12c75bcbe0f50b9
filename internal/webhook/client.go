package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/imontero/voznote/internal/model"
)

// Client forwards captured entries to a user-configured spreadsheet
// webhook (an Apps Script deployment in the original setup). Forwarding
// is best-effort: the response body is ignored and only transport
// errors count as failures.
type Client struct {
	url         string
	targetEmail string
	http        *http.Client
	logger      *log.Logger
}

// New builds a webhook client. An empty url disables forwarding.
func New(url, targetEmail string, logger *log.Logger) *Client {
	return &Client{
		url:         url,
		targetEmail: targetEmail,
		http:        &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool { return c.url != "" }

type payload struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	Transcription string `json:"transcription"`
	Type          string `json:"type"`
	ReminderDate  string `json:"reminderDate"`
	TargetEmail   string `json:"targetEmail"`
}

// Forward POSTs the entry's fields to the configured URL.
func (c *Client) Forward(entry model.Entry) error {
	if !c.Enabled() {
		return fmt.Errorf("webhook URL not configured")
	}

	reminderDate := ""
	if entry.ReminderAt != nil {
		reminderDate = entry.ReminderAt.Format(time.RFC3339)
	}

	body, err := json.Marshal(payload{
		Date:          entry.CreatedAt.Format("02/01/2006"),
		Time:          entry.CreatedAt.Format("15:04"),
		Transcription: entry.Transcript,
		Type:          string(entry.Kind),
		ReminderDate:  reminderDate,
		TargetEmail:   c.targetEmail,
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	resp, err := c.http.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
