// Package common provides shared constants, types, and utilities
// used across the VPN Panel application.
package common

// Notifier defines the interface for sending desktop notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
	// NotifyWithIcon sends a notification with a custom icon.
	NotifyWithIcon(title, message, icon string) error
}

// TokenStore persists the backend API token.
// Implementations may use the system keyring, a plain file, etc.
type TokenStore interface {
	// Get returns the stored token.
	Get() (string, error)
	// Store saves the token.
	Store(token string) error
	// Delete removes the stored token.
	Delete() error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)
	// Info logs an informational message.
	Info(msg string, args ...any)
	// Warn logs a warning message.
	Warn(msg string, args ...any)
	// Error logs an error message.
	Error(msg string, args ...any)
}
