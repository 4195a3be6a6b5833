package recorder

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one message published on the host event bus.
type Event struct {
	ID      string    `json:"id"`
	Channel string    `json:"channel"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// EventBus republishes engine events (danmu messages, clip progress) to the
// host application. Publishing is best-effort and must never block the
// recording loops.
type EventBus interface {
	Publish(channel string, payload any)
}

// Notifier surfaces user-facing notifications (live started/ended).
// Best-effort, fire-and-forget.
type Notifier interface {
	Notify(title, body string)
}

// MemoryBus is an in-process EventBus with channel-scoped subscribers.
// Slow subscribers drop events rather than stalling publishers.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

// NewMemoryBus returns a new empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan Event)}
}

// Subscribe returns a buffered channel of events for the given channel name
// and a cancel function that removes the subscription.
func (b *MemoryBus) Subscribe(channel string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// Publish implements EventBus.Publish.
func (b *MemoryBus) Publish(channel string, payload any) {
	ev := Event{
		ID:      uuid.NewString(),
		Channel: channel,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- ev:
		default:
		}
	}
}

var _ EventBus = (*MemoryBus)(nil)

// LogNotifier writes notifications to the structured log. Used when the
// host has no native notification surface wired in.
type LogNotifier struct {
	Log *slog.Logger
}

// Notify implements Notifier.Notify.
func (n LogNotifier) Notify(title, body string) {
	n.Log.Info("notification", slog.String("title", title), slog.String("body", body))
}

var _ Notifier = LogNotifier{}
