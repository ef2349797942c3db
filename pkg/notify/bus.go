// Package notify is a publish/subscribe bus for user-facing notifications.
// Producers publish without knowing who renders; any number of consumers
// subscribe independently.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the notification severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a single user-facing message.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Bus fans notifications out to all current subscribers. A slow subscriber
// drops messages rather than blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]chan Notification
	buf  int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		subs: make(map[string]chan Notification),
		buf:  buffer,
	}
}

// Subscribe registers a consumer. The returned cancel function removes the
// subscription and closes its channel.
func (b *Bus) Subscribe() (<-chan Notification, func()) {
	id := uuid.NewString()
	ch := make(chan Notification, b.buf)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers a notification to every subscriber and returns it with
// its assigned ID.
func (b *Bus) Publish(level Level, message string) Notification {
	n := Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Message: message,
		At:      time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			// Subscriber buffer full; drop for this consumer.
		}
	}
	return n
}

// Info publishes an informational notification.
func (b *Bus) Info(message string) Notification { return b.Publish(LevelInfo, message) }

// Success publishes a success notification.
func (b *Bus) Success(message string) Notification { return b.Publish(LevelSuccess, message) }

// Warning publishes a warning notification.
func (b *Bus) Warning(message string) Notification { return b.Publish(LevelWarning, message) }

// Error publishes an error notification.
func (b *Bus) Error(message string) Notification { return b.Publish(LevelError, message) }

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
