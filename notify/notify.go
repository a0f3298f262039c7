// Package notify shows desktop notifications for connection events.
// Notifications go to the org.freedesktop.Notifications service on the
// session bus.
package notify

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/vpn-panel/common"
)

const (
	dbusNotifyDest      = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	dbusNotifyInterface = "org.freedesktop.Notifications"

	// expireDefault lets the server pick the timeout.
	expireDefault int32 = -1
)

// Type represents the type of notification
type Type int

const (
	TypeInfo Type = iota
	TypeSuccess
	TypeWarning
	TypeError
)

// urgency returns the freedesktop urgency level (0 low, 1 normal, 2 critical).
func (t Type) urgency() byte {
	switch t {
	case TypeError:
		return 2
	case TypeWarning:
		return 1
	default:
		return 0
	}
}

// icon returns the themed icon used when a notification names none.
func (t Type) icon() string {
	switch t {
	case TypeWarning:
		return "dialog-warning"
	case TypeError:
		return "dialog-error"
	default:
		return "network-vpn"
	}
}

// Notification represents a system notification
type Notification struct {
	Title   string
	Message string
	Type    Type
	Icon    string
}

var _ common.Notifier = (*DBusNotifier)(nil)

// DBusNotifier sends notifications over the session bus. Each new
// notification replaces the previous one so the desktop shows only the
// latest connection event.
type DBusNotifier struct {
	conn *dbus.Conn
	obj  dbus.BusObject

	mu     sync.Mutex
	lastID uint32
}

// NewDBusNotifier connects to the session bus.
func NewDBusNotifier() (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	return &DBusNotifier{
		conn: conn,
		obj:  conn.Object(dbusNotifyDest, dbus.ObjectPath(dbusNotifyPath)),
	}, nil
}

// Notify sends a notification with the default icon.
func (n *DBusNotifier) Notify(title, message string) error {
	return n.Show(Notification{Title: title, Message: message})
}

// NotifyWithIcon sends a notification with a custom icon.
func (n *DBusNotifier) NotifyWithIcon(title, message, icon string) error {
	return n.Show(Notification{Title: title, Message: message, Icon: icon})
}

// Show displays n.
func (n *DBusNotifier) Show(note Notification) error {
	icon := note.Icon
	if icon == "" {
		icon = note.Type.icon()
	}
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(note.Type.urgency()),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var id uint32
	call := n.obj.Call(dbusNotifyInterface+".Notify", 0,
		common.AppName, n.lastID, icon, note.Title, note.Message,
		[]string{}, hints, expireDefault)
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	n.lastID = id
	return nil
}

// Close releases the bus connection.
func (n *DBusNotifier) Close() error {
	return n.conn.Close()
}
