// Package vpn implements the VPN section's connection state machine.
//
// The package does not manage tunnels itself. It drives an external backend
// (bitmaskd) through the Backend interface and turns the backend's
// asynchronous answers into a single coherent View for the user interface.
//
// # Architecture
//
// The package is organized around three main types:
//
//   - Controller: owns the state machine for one account and publishes Views
//   - EventBus: delivers backend push notifications with typed subscriptions
//   - Backend: the capability the controller calls (check, certificate, start,
//     stop, status, install, enable)
//
// # Connection Flow
//
// A typical flow:
//
//  1. The panel creates a Controller for the active Account and calls Start
//  2. The controller checks readiness, renewing the VPN certificate if needed
//  3. Once ready it refreshes the tunnel status and shows Down or Up
//  4. Connect stops any stale tunnel, starts the tunnel and polls status while Up
//  5. Disconnect stops the tunnel and returns to Down
//
// # Concurrency
//
// Each Controller runs a single event loop. Commands, bus events, timer ticks
// and backend completions are applied on that loop one at a time. Backend
// calls run on their own goroutines; their completions are tagged when issued
// and dropped if a newer command, a newer readiness check or Close superseded
// them. Observers are called on the loop goroutine and must not call back
// into the controller synchronously.
package vpn
