// Package common provides shared constants, types, utilities, and interfaces
// used throughout the VPN Panel application.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Application-wide constants like poll intervals and file names
//   - Errors: Sentinel errors for the backend failure taxonomy
//   - Interfaces: Abstractions for notifications, token storage, and logging
//   - Logger: Leveled logging with optional rotating file output
//   - Utils: Config/data directory helpers and small string helpers
//
// # Usage
//
//	// Use constants
//	interval := common.StatusPollInterval
//
//	// Use logger
//	common.LogInfo("Checking readiness for %s", domain)
//
//	// Check errors
//	if errors.Is(err, common.ErrMissingCertificate) {
//	    // Renew the certificate
//	}
package common
