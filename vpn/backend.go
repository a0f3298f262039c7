package vpn

import (
	"context"
	"time"
)

// Backend is the VPN capability of the backend service.
// Every method may block; the controller always calls them off its loop.
type Backend interface {
	// Check reports whether the VPN can start for domain.
	// Fails with ErrMissingCertificate, ErrPolicyAgentMissing or ErrNetwork.
	Check(ctx context.Context, domain string) (Readiness, error)
	// GetCertificate fetches a fresh VPN certificate for the account.
	GetCertificate(ctx context.Context, accountID string) error
	// Start brings the tunnel up for domain.
	Start(ctx context.Context, domain string) error
	// Stop tears the tunnel down. ErrNotRunning means nothing was running.
	Stop(ctx context.Context, domain string) error
	// Status reports the current tunnel. Unknown status strings fail with ErrUnknownStatus.
	Status(ctx context.Context) (StatusSnapshot, error)
	// Install installs the privileged helper files.
	Install(ctx context.Context) error
	// Enable switches the VPN on for the provider.
	Enable(ctx context.Context) error
}

// Recorder receives controller telemetry. All methods are called on the
// controller loop.
type Recorder interface {
	Transition(from, to State)
	BackendCall(op string, err error, elapsed time.Duration)
	Discarded(reason string)
}

type nopRecorder struct{}

func (nopRecorder) Transition(State, State)                 {}
func (nopRecorder) BackendCall(string, error, time.Duration) {}
func (nopRecorder) Discarded(string)                        {}
