package coordinator

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notification is a transient, user-facing message about a failed update.
type Notification struct {
	LineItemID string    `json:"lineItemId"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

// Notifier surfaces notifications to the user. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// userMessager is implemented by errors that carry a message meant for users.
type userMessager interface {
	UserMessage() string
}

// failureMessage builds the text shown to the user for a failed update.
func failureMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return "Could not update quantity: " + um.UserMessage()
	}
	return "Could not update quantity. Please try again."
}

// logNotifier writes notifications to the log.
type logNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger zerolog.Logger) Notifier {
	return &logNotifier{
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *logNotifier) Notify(note Notification) {
	n.logger.Warn().
		Str("line_item_id", note.LineItemID).
		Time("at", note.At).
		Msg(note.Message)
}

// NotificationLog keeps the most recent notifications in memory.
type NotificationLog struct {
	mu      sync.Mutex
	entries []Notification
	limit   int
}

// NewNotificationLog creates a log holding at most limit notifications.
func NewNotificationLog(limit int) *NotificationLog {
	if limit < 1 {
		limit = 1
	}
	return &NotificationLog{
		entries: make([]Notification, 0, limit),
		limit:   limit,
	}
}

// Notify records a notification, evicting the oldest when full.
func (l *NotificationLog) Notify(n Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, n)
}

// Recent returns the stored notifications, oldest first.
func (l *NotificationLog) Recent() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Notification, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of stored notifications.
func (l *NotificationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
