package vpn

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/yllada/vpn-panel/common"
)

// EventName identifies a backend notification.
type EventName string

const (
	// EventStatusChanged is pushed whenever the tunnel status changes.
	EventStatusChanged EventName = "VPN_STATUS_CHANGED"
	// EventAuthDone is pushed when a login completes. Content is [uid, address].
	EventAuthDone EventName = "AUTH_DONE"
)

// Event is one notification delivered by the bus.
type Event struct {
	Name    EventName
	Content []string
}

// Handler receives events. It runs on the publisher's goroutine.
type Handler func(Event)

// Subscription is the handle returned by Register. Only the handle that
// Register returned can remove the registration.
type Subscription struct {
	name EventName
	id   uuid.UUID
}

// Name returns the event the subscription listens to.
func (s Subscription) Name() EventName {
	return s.name
}

// Valid reports whether the handle came from Register.
func (s Subscription) Valid() bool {
	return s.id != uuid.Nil
}

type subscriber struct {
	id      uuid.UUID
	handler Handler
}

// EventBus fans backend notifications out to registered handlers.
type EventBus struct {
	mu   sync.RWMutex
	subs map[EventName][]subscriber
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[EventName][]subscriber)}
}

// Register adds a handler for name and returns its handle.
func (b *EventBus) Register(name EventName, h Handler) Subscription {
	sub := Subscription{name: name, id: uuid.New()}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], subscriber{id: sub.id, handler: h})
	return sub
}

// Unregister removes the registration behind sub. It returns false when the
// handle is unknown or was already removed.
func (b *EventBus) Unregister(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.name]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.name] = append(list[:i:i], list[i+1:]...)
			if len(b.subs[sub.name]) == 0 {
				delete(b.subs, sub.name)
			}
			return true
		}
	}
	return false
}

// Publish delivers ev to the handlers registered for its name, in
// registration order, and returns how many were called.
func (b *EventBus) Publish(ev Event) int {
	b.mu.RLock()
	list := append([]subscriber(nil), b.subs[ev.Name]...)
	b.mu.RUnlock()

	for _, s := range list {
		s.handler(ev)
	}
	return len(list)
}

// Subscribers returns the number of live registrations for name.
func (b *EventBus) Subscribers(name EventName) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// AuthDone is the payload of EventAuthDone.
type AuthDone struct {
	UserID  string
	Address string
}

// Domain returns the provider domain of the account that logged in.
func (a AuthDone) Domain() string {
	return common.DomainOf(a.Address)
}

var errBadAuthEvent = errors.New("auth event without account address")

// ParseAuthDone extracts the login payload. A single-element content is
// taken to be the address.
func ParseAuthDone(ev Event) (AuthDone, error) {
	switch len(ev.Content) {
	case 0:
		return AuthDone{}, errBadAuthEvent
	case 1:
		if ev.Content[0] == "" {
			return AuthDone{}, errBadAuthEvent
		}
		return AuthDone{Address: ev.Content[0]}, nil
	default:
		if ev.Content[1] == "" {
			return AuthDone{}, errBadAuthEvent
		}
		return AuthDone{UserID: ev.Content[0], Address: ev.Content[1]}, nil
	}
}
