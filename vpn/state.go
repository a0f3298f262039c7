package vpn

import "fmt"

// State is the connection state shown by the VPN section.
type State int

const (
	// StateWaiting is the initial state while readiness is unresolved.
	StateWaiting State = iota
	// StateDown means the tunnel can be started.
	StateDown
	// StateConnecting means a start was requested and is not confirmed yet.
	StateConnecting
	// StateUp means the tunnel is running for this account's provider.
	StateUp
	// StateDisconnecting means a stop was requested and is not confirmed yet.
	StateDisconnecting
	// StateFailed means the last operation failed; View.Error has the reason.
	StateFailed
	// StateDisabled means the VPN is switched off for this provider.
	StateDisabled
	// StateNoHelpers means the privileged helper files are not installed.
	StateNoHelpers
	// StateNoPolicyAgent means no polkit authentication agent is running.
	StateNoPolicyAgent
)

// String returns the state's identifier.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateDown:
		return "down"
	case StateConnecting:
		return "connecting"
	case StateUp:
		return "up"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	case StateDisabled:
		return "disabled"
	case StateNoHelpers:
		return "no-helpers"
	case StateNoPolicyAgent:
		return "no-policy-agent"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets states appear by name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name as produced by String.
func (s *State) UnmarshalText(text []byte) error {
	name := string(text)
	for st := StateWaiting; st <= StateNoPolicyAgent; st++ {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown VPN state %q", name)
}

// allowedTransitions lists every state reachable from a given state.
// Re-entering the current state is always allowed.
var allowedTransitions = map[State][]State{
	StateWaiting: {
		StateDown, StateConnecting, StateUp, StateDisconnecting,
		StateFailed, StateDisabled, StateNoHelpers, StateNoPolicyAgent,
	},
	StateDown: {
		StateWaiting, StateConnecting, StateUp, StateDisconnecting,
		StateFailed, StateDisabled, StateNoPolicyAgent,
	},
	StateConnecting: {
		StateWaiting, StateDown, StateUp, StateDisconnecting,
		StateFailed, StateDisabled, StateNoPolicyAgent,
	},
	StateUp: {
		StateWaiting, StateDown, StateConnecting, StateDisconnecting,
		StateFailed, StateDisabled, StateNoPolicyAgent,
	},
	StateDisconnecting: {
		StateWaiting, StateDown, StateUp, StateFailed, StateDisabled, StateNoPolicyAgent,
	},
	StateFailed: {
		StateWaiting, StateDown, StateConnecting, StateUp, StateDisconnecting, StateDisabled,
	},
	StateDisabled:      {StateWaiting, StateFailed},
	StateNoHelpers:     {StateWaiting, StateFailed},
	StateNoPolicyAgent: {StateWaiting, StateFailed},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Action is the user command a view offers for its current state.
type Action int

const (
	ActionNone Action = iota
	ActionConnect
	ActionDisconnect
	ActionRetry
	ActionInstallHelper
	ActionEnable
)

// String returns the button label for the action.
func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "Turn ON"
	case ActionDisconnect:
		return "Turn OFF"
	case ActionRetry:
		return "Retry"
	case ActionInstallHelper:
		return "Install Helper Files"
	case ActionEnable:
		return "Enable"
	default:
		return ""
	}
}
