package vpn

import (
	"fmt"
	"strings"

	"github.com/yllada/vpn-panel/common"
)

// Errors re-exported from the common package for convenience.
var (
	ErrNetwork            = common.ErrNetwork
	ErrMissingCertificate = common.ErrMissingCertificate
	ErrAuth               = common.ErrAuth
	ErrPolicyAgentMissing = common.ErrPolicyAgentMissing
	ErrInstall            = common.ErrInstall
	ErrEnable             = common.ErrEnable
	ErrStart              = common.ErrStart
	ErrNotRunning         = common.ErrNotRunning
	ErrUnknownStatus      = common.ErrUnknownStatus
	ErrCommandUnavailable = common.ErrCommandUnavailable
	ErrInvalidTransition  = common.ErrInvalidTransition
	ErrClosed             = common.ErrClosed
)

// Messages shown alongside a state.
const (
	MsgLoginToRenew = "Please log in to renew credentials."
	MsgRenewing     = "Renewing VPN credentials..."
)

// Account is the context a controller runs for. It is replaced as a whole
// when the active account changes.
type Account struct {
	ID            string `json:"id"`
	Domain        string `json:"domain"`
	Authenticated bool   `json:"authenticated"`
}

// Status is the tunnel status reported by the backend.
type Status string

const (
	StatusOn       Status = "on"
	StatusOff      Status = "off"
	StatusStarting Status = "starting"
	StatusStopping Status = "stopping"
	StatusFailed   Status = "failed"
	StatusDisabled Status = "disabled"
)

// ParseStatus validates a backend status string.
// Unknown values yield an error wrapping ErrUnknownStatus.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusOn, StatusOff, StatusStarting, StatusStopping, StatusFailed, StatusDisabled:
		return st, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStatus, s)
}

// StatusSnapshot is one answer of Backend.Status.
type StatusSnapshot struct {
	// Domain of the provider the tunnel runs for; empty when no tunnel runs.
	Domain string
	Status Status
	// Up and Down are byte counters; nil when the backend has none.
	Up   *uint64
	Down *uint64
	// Error is the backend's reason for StatusFailed.
	Error string
}

// appliesTo reports whether the snapshot describes the tunnel of domain.
// A snapshot without a domain that says nothing runs is true for every domain.
func (s StatusSnapshot) appliesTo(domain string) bool {
	if s.Domain == "" {
		return s.Status == StatusOff || s.Status == StatusDisabled
	}
	return strings.EqualFold(s.Domain, domain)
}

// Readiness is the answer of Backend.Check.
type Readiness struct {
	Installed  bool
	VPNReady   bool
	VPNEnabled bool
}

// View is what the controller publishes to its observers.
type View struct {
	Domain  string  `json:"domain"`
	State   State   `json:"state"`
	Error   string  `json:"error,omitempty"`
	Message string  `json:"message,omitempty"`
	Up      *uint64 `json:"up,omitempty"`
	Down    *uint64 `json:"down,omitempty"`
	// Ready is set once the readiness check passed for Domain.
	Ready bool `json:"ready"`
}

// Action returns the one command the view offers.
func (v View) Action() Action {
	switch v.State {
	case StateDown:
		return ActionConnect
	case StateUp, StateConnecting:
		return ActionDisconnect
	case StateFailed, StateNoPolicyAgent:
		return ActionRetry
	case StateDisabled:
		return ActionEnable
	case StateNoHelpers:
		return ActionInstallHelper
	case StateWaiting:
		if v.Error != "" {
			return ActionRetry
		}
	}
	return ActionNone
}

// BackendError is a failed backend call. It prints as the backend's own
// message and unwraps to one of the sentinel kinds.
type BackendError struct {
	Op      string
	Kind    error
	Message string
}

// NewBackendError builds a BackendError.
func NewBackendError(op string, kind error, message string) *BackendError {
	return &BackendError{Op: op, Kind: kind, Message: message}
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return e.Op + " failed"
}

func (e *BackendError) Unwrap() error {
	return e.Kind
}
