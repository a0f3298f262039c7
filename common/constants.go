// Package common provides shared constants, types, and utilities
// used across the VPN Panel application.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "net.leap.vpnpanel"
	// AppName is the display name of the application.
	AppName = "VPN Panel"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "vpn-panel"
)

// File names used by the application.
const (
	ConfigFileName  = "config.yaml"
	LogFileName     = "vpn-panel.log"
	JournalFileName = "journal.db"
	TokenFileName   = "authtoken"
)

// Default timeouts and intervals.
const (
	// StatusPollInterval is how often the tunnel status is polled while up.
	StatusPollInterval = 1000 * time.Millisecond
	// EventPollInterval is the pause between backend event polls that returned nothing.
	EventPollInterval = 1 * time.Second
	// RequestTimeout bounds a single backend API call.
	RequestTimeout = 30 * time.Second
	// StartTimeout bounds a backend start call, which lasts until the tunnel is up.
	StartTimeout = 45 * time.Second
	// ConnectionTimeout is the maximum time the CLI waits for a tunnel to come up.
	// It outlasts StartTimeout so a slow start is reported as a failure.
	ConnectionTimeout = 60 * time.Second
)

// DefaultBackendURL is where bitmaskd serves its API by default.
const DefaultBackendURL = "http://localhost:7070"

// UI constants.
const (
	// TrayIconSize is the size of the system tray icon.
	TrayIconSize = 22
	// SectionWidth is the width of the terminal VPN section.
	SectionWidth = 56
)
