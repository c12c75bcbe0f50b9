package notify

import (
	"fmt"
	"log"

	"github.com/imontero/voznote/internal/twilio"
)

// Notifier delivers reminder alerts over WhatsApp. When the channel is
// not configured it degrades to a logged no-op: delivery is skipped but
// never reported as a failure, so reminders are not stuck pending
// behind a missing credential.
type Notifier struct {
	client *twilio.Client
	to     string
	logger *log.Logger
}

// New builds the notifier. client may be nil and to may be empty; the
// availability of the channel is decided (and logged) once, here.
func New(client *twilio.Client, to string, logger *log.Logger) *Notifier {
	n := &Notifier{client: client, to: to, logger: logger}
	if !n.enabled() {
		logger.Printf("notify: WhatsApp channel not configured, reminder alerts will be skipped")
	}
	return n
}

func (n *Notifier) enabled() bool {
	return n.client != nil && n.to != ""
}

// Notify sends one alert. Skipping a disabled channel is not an error.
func (n *Notifier) Notify(title, body string) error {
	if !n.enabled() {
		n.logger.Printf("notify: channel disabled, skipping %q", title)
		return nil
	}
	return n.client.Send(n.to, fmt.Sprintf("%s: %s", title, body))
}
