package notify

import (
	"sync"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

// Sender is what a Watcher delivers notifications through.
type Sender interface {
	Show(Notification) error
}

// Watcher turns view changes into notifications. Observe is called on the
// controller loop, so delivery happens on a separate goroutine.
type Watcher struct {
	sender Sender
	log    common.Logger

	queue chan Notification
	done  chan struct{}
	once  sync.Once

	mu   sync.Mutex
	last vpn.View
	seen bool
}

// NewWatcher starts a watcher delivering through sender.
func NewWatcher(sender Sender) *Watcher {
	w := &Watcher{
		sender: sender,
		log:    common.Component("notify"),
		queue:  make(chan Notification, 8),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Observe receives every published view.
func (w *Watcher) Observe(v vpn.View) {
	w.mu.Lock()
	prev, seen := w.last, w.seen
	w.last, w.seen = v, true
	w.mu.Unlock()

	note, ok := notificationFor(prev, seen, v)
	if !ok {
		return
	}
	select {
	case w.queue <- note:
	default:
		w.log.Warn("Dropping notification %q: queue full", note.Title)
	}
}

// Close stops delivery. Queued notifications are discarded.
func (w *Watcher) Close() {
	w.once.Do(func() { close(w.done) })
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case note := <-w.queue:
			if err := w.sender.Show(note); err != nil {
				w.log.Warn("Error showing notification: %v", err)
			}
		}
	}
}

// notificationFor decides what, if anything, the change prev -> next is
// worth telling the user. The first view of a domain only notifies when it
// already reports a problem.
func notificationFor(prev vpn.View, seen bool, next vpn.View) (Notification, bool) {
	fresh := !seen || prev.Domain != next.Domain
	if !fresh && prev.State == next.State && prev.Error == next.Error && prev.Message == next.Message {
		return Notification{}, false
	}

	provider := next.Domain
	if provider == "" {
		provider = "VPN"
	}

	switch next.State {
	case vpn.StateUp:
		if fresh || prev.State == vpn.StateUp {
			return Notification{}, false
		}
		return Notification{
			Title:   "VPN Connected",
			Message: "Connected to " + provider,
			Type:    TypeSuccess,
			Icon:    "network-vpn",
		}, true
	case vpn.StateDown:
		if fresh || (prev.State != vpn.StateUp && prev.State != vpn.StateDisconnecting) {
			return Notification{}, false
		}
		return Notification{
			Title:   "VPN Disconnected",
			Message: "Disconnected from " + provider,
			Type:    TypeInfo,
			Icon:    "network-vpn-disconnected",
		}, true
	case vpn.StateFailed:
		msg := next.Error
		if msg == "" {
			msg = "VPN failed"
		}
		return Notification{
			Title:   "Connection Error",
			Message: provider + ": " + msg,
			Type:    TypeError,
			Icon:    "network-vpn-error",
		}, true
	case vpn.StateNoPolicyAgent:
		return Notification{
			Title:   "Authentication Agent Missing",
			Message: "No polkit agent is running; the VPN cannot be started.",
			Type:    TypeWarning,
		}, true
	case vpn.StateWaiting:
		if next.Message != vpn.MsgLoginToRenew || (!fresh && prev.Message == next.Message) {
			return Notification{}, false
		}
		return Notification{
			Title:   "VPN Credentials Expired",
			Message: provider + ": " + next.Message,
			Type:    TypeWarning,
		}, true
	}
	return Notification{}, false
}
