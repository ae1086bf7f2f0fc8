// Package notify carries operator-facing outcome messages for long-running
// operations. Components emit notifications through a Notifier; the service
// wires in a log-backed implementation, tests capture them directly.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is one operator-facing message.
type Notification struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Notifier receives operation outcome messages.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{
		logger: log.With().Str("component", "notify").Logger(),
	}
}

func (n *LogNotifier) Notify(notification Notification) {
	event := n.logger.Info()
	if notification.Severity == SeverityError {
		event = n.logger.Error()
	}
	event.
		Str("severity", string(notification.Severity)).
		Msg(notification.Message)
}

// Capture collects notifications for assertions in tests.
type Capture struct {
	mu            sync.Mutex
	notifications []Notification
}

func (c *Capture) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, n)
}

// All returns the captured notifications in emission order.
func (c *Capture) All() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.notifications...)
}
