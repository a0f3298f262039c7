// Package panel hosts the VPN section for the active account.
//
// A Panel owns exactly one vpn.Controller. Whenever the account changes the
// controller is closed and a fresh one is built, so no state of the previous
// account can leak into the new one.
package panel

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

// AccountSource reports the account currently active in the backend.
type AccountSource interface {
	ActiveAccount(ctx context.Context) (vpn.Account, error)
}

// Panel is the VPN section of the main window.
type Panel struct {
	backend vpn.Backend
	bus     *vpn.EventBus
	opts    []vpn.Option

	mu         sync.RWMutex
	gen        uint64
	account    vpn.Account
	controller *vpn.Controller
	observers  []func(vpn.View)
	closed     bool
}

// New creates an empty panel. opts are applied to every controller it builds.
func New(backend vpn.Backend, bus *vpn.EventBus, opts ...vpn.Option) *Panel {
	return &Panel{
		backend: backend,
		bus:     bus,
		opts:    opts,
	}
}

// OnChange registers fn for the views of the current controller. Views of
// replaced controllers are never delivered.
func (p *Panel) OnChange(fn func(vpn.View)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// SetAccount mounts the VPN section for account. An identical account keeps
// the running controller; any other account replaces it.
func (p *Panel) SetAccount(account vpn.Account) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return common.ErrClosed
	}
	if p.controller != nil && p.account == account {
		p.mu.Unlock()
		return nil
	}

	old := p.controller
	p.gen++
	gen := p.gen
	p.account = account
	p.controller = vpn.New(p.backend, p.bus, account, p.opts...)
	ctrl := p.controller
	p.mu.Unlock()

	if old != nil {
		common.LogInfo("Account changed from %s to %s, replacing VPN controller",
			old.Account().Domain, account.Domain)
		old.Close()
	}

	ctrl.OnChange(func(v vpn.View) { p.emit(gen, v) })
	p.emit(gen, ctrl.View())
	if err := ctrl.Start(); err != nil && !errors.Is(err, common.ErrClosed) {
		return err
	}
	// ErrClosed means a newer account already replaced this controller.
	return nil
}

// Refresh asks src for the active account and mounts it.
func (p *Panel) Refresh(ctx context.Context, src AccountSource) error {
	account, err := src.ActiveAccount(ctx)
	if err != nil {
		return common.WrapError(err, "looking up active account")
	}
	return p.SetAccount(account)
}

// Controller returns the current controller, or nil before SetAccount.
func (p *Panel) Controller() *vpn.Controller {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.controller
}

// Account returns the mounted account.
func (p *Panel) Account() vpn.Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.account
}

// View returns the current controller's view. Before an account is mounted
// it is an empty Waiting view.
func (p *Panel) View() vpn.View {
	if c := p.Controller(); c != nil {
		return c.View()
	}
	return vpn.View{State: vpn.StateWaiting}
}

// Do forwards a user action to the current controller.
func (p *Panel) Do(a vpn.Action) error {
	c := p.Controller()
	if c == nil {
		return common.WrapError(common.ErrCommandUnavailable, "no account selected")
	}
	return c.Do(a)
}

// Close unmounts the panel and releases its controller.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.gen++
	c := p.controller
	p.controller = nil
	p.mu.Unlock()

	if c != nil {
		c.Close()
	}
}

func (p *Panel) emit(gen uint64, v vpn.View) {
	p.mu.RLock()
	if gen != p.gen {
		p.mu.RUnlock()
		return
	}
	observers := slices.Clone(p.observers)
	p.mu.RUnlock()

	for _, fn := range observers {
		fn(v)
	}
}
