// Package notification delivers the toasts raised by resource managers.
// A Queue holds toasts for a browser session until the next page render,
// Push forwards them to the session's open WebSocket connections, and Log
// writes them to the structured log.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emr/console/internal/platform/websocket"
	"github.com/emr/console/internal/resource"
)

// Toast is one user-facing message.
type Toast struct {
	Level   resource.Level `json:"level"`
	Message string         `json:"message"`
	At      time.Time      `json:"at"`
}

// DefaultQueueSize bounds the toasts held for one session.
const DefaultQueueSize = 20

// Queue buffers toasts until they are drained into a rendered page. When
// full the oldest toast is dropped.
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
	max    int
	now    func() time.Time
}

// NewQueue creates a queue holding at most max toasts. A non-positive max
// uses DefaultQueueSize.
func NewQueue(max int) *Queue {
	if max <= 0 {
		max = DefaultQueueSize
	}
	return &Queue{max: max, now: time.Now}
}

// Notify implements resource.Notifier.
func (q *Queue) Notify(level resource.Level, message string) {
	if message == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = append(q.toasts, Toast{Level: level, Message: message, At: q.now()})
	if over := len(q.toasts) - q.max; over > 0 {
		q.toasts = append([]Toast(nil), q.toasts[over:]...)
	}
}

// Drain returns the pending toasts, oldest first, and empties the queue.
func (q *Queue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.toasts
	q.toasts = nil
	return out
}

// Len returns the number of pending toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}

// Push publishes toasts to a session's WebSocket topic.
type Push struct {
	Publisher websocket.Publisher
	SessionID string
	Logger    zerolog.Logger
}

// Notify implements resource.Notifier.
func (p Push) Notify(level resource.Level, message string) {
	err := p.Publisher.Publish(context.Background(), websocket.Event{
		Type:    websocket.EventToast,
		Topic:   websocket.SessionTopic(p.SessionID),
		Level:   string(level),
		Message: message,
	})
	if err != nil {
		p.Logger.Warn().Err(err).Str("session_id", p.SessionID).Msg("failed to push toast")
	}
}

// Log writes toasts to the structured log. Warning and error toasts log at
// warn.
type Log struct {
	Logger zerolog.Logger
}

// Notify implements resource.Notifier.
func (l Log) Notify(level resource.Level, message string) {
	evt := l.Logger.Debug()
	switch level {
	case resource.LevelWarning, resource.LevelError:
		evt = l.Logger.Warn()
	}
	evt.Str("toast_level", string(level)).Str("toast", message).Msg("toast")
}

// Fanout delivers each toast to every notifier in order. Nil notifiers are
// skipped.
func Fanout(notifiers ...resource.Notifier) resource.Notifier {
	return fanout(notifiers)
}

type fanout []resource.Notifier

func (f fanout) Notify(level resource.Level, message string) {
	for _, n := range f {
		if n != nil {
			n.Notify(level, message)
		}
	}
}
