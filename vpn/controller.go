package vpn

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/yllada/vpn-panel/common"
)

// Controller drives the VPN state machine for one account.
//
// All state below the loop-owned marker is only touched on the loop
// goroutine; the published view is guarded by mu.
type Controller struct {
	backend      Backend
	bus          *EventBus
	log          common.Logger
	rec          Recorder
	pollInterval time.Duration
	account      Account

	ctx      context.Context
	cancel   context.CancelFunc
	inbox    chan func()
	done     chan struct{}
	loopDone chan struct{}
	once     sync.Once

	mu        sync.RWMutex
	published View
	observers []func(View)

	// loop-owned
	view      View
	started   bool
	subs      []Subscription
	opSeq     uint64
	opPending bool
	readySeq  map[string]uint64
	pollGen   uint64
	pollTimer *time.Timer
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval sets the status poll interval used while the tunnel is up.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger replaces the default "vpn" component logger.
func WithLogger(l common.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.rec = r
		}
	}
}

// New creates a controller for account. The controller is idle until Start
// is called. bus may be nil when no push notifications are available.
func New(backend Backend, bus *EventBus, account Account, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:      backend,
		bus:          bus,
		log:          common.Component("vpn"),
		rec:          nopRecorder{},
		pollInterval: common.StatusPollInterval,
		account:      account,
		ctx:          ctx,
		cancel:       cancel,
		inbox:        make(chan func(), 64),
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
		readySeq:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.view = View{Domain: account.Domain, State: StateWaiting}
	c.published = c.view

	go c.loop()
	return c
}

// Account returns the account the controller was created for.
func (c *Controller) Account() Account {
	return c.account
}

// View returns the most recently published view.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published
}

// OnChange registers fn to receive every published view. fn runs on the
// controller loop and must not call controller commands synchronously.
func (c *Controller) OnChange(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Start subscribes to backend events and runs the first readiness check.
// Calling it again has no effect.
func (c *Controller) Start() error {
	return c.exec(func() error {
		if c.started {
			return nil
		}
		c.started = true

		if c.bus != nil {
			c.subs = append(c.subs,
				c.bus.Register(EventStatusChanged, c.forward),
				c.bus.Register(EventAuthDone, c.forward),
			)
		}
		c.log.Info("Checking VPN readiness for %s", c.account.Domain)
		c.checkReadiness(c.account, true)
		return nil
	})
}

// Close releases the controller: subscriptions are removed, the poll timer
// is stopped and completions still in flight are dropped.
func (c *Controller) Close() {
	c.once.Do(func() {
		_ = c.exec(func() error {
			for _, sub := range c.subs {
				c.bus.Unregister(sub)
			}
			c.subs = nil
			c.stopPolling()
			return nil
		})
		c.cancel()
		close(c.done)
		<-c.loopDone
		// A completion applied before done closed may have armed a new timer.
		c.stopPolling()
		c.log.Debug("Controller for %s closed", c.account.Domain)
	})
}

// Connect starts the tunnel. It is a no-op while connecting or up.
func (c *Controller) Connect() error {
	return c.exec(func() error {
		switch c.view.State {
		case StateConnecting, StateUp:
			return nil
		case StateDown:
		case StateFailed:
			if !c.view.Ready {
				return c.unavailable("connect")
			}
		default:
			return c.unavailable("connect")
		}

		op := c.beginOp()
		c.update(func(v *View) {
			v.State = StateConnecting
			v.Error = ""
			v.Message = ""
		})

		domain := c.account.Domain
		// A tunnel left over from an earlier session would make start fail.
		dispatchErr(c, "stop", func(ctx context.Context) error {
			return c.backend.Stop(ctx, domain)
		}, func(err error) {
			if !c.currentOp(op, "stop before connect") {
				return
			}
			if err != nil && !errors.Is(err, ErrNotRunning) {
				c.log.Debug("Ignoring stop error before connect: %v", err)
			}
			dispatchErr(c, "start", func(ctx context.Context) error {
				return c.backend.Start(ctx, domain)
			}, func(err error) {
				if !c.currentOp(op, "start") {
					return
				}
				c.endOp()
				if err != nil {
					c.log.Error("Failed to start VPN for %s: %v", domain, err)
					c.fail(err)
					return
				}
				c.log.Info("VPN started for %s", domain)
				c.update(func(v *View) {
					v.State = StateUp
					v.Error = ""
				})
			})
		})
		return nil
	})
}

// Disconnect stops the tunnel. It is a no-op while disconnecting or down.
func (c *Controller) Disconnect() error {
	return c.exec(func() error {
		switch c.view.State {
		case StateDisconnecting, StateDown:
			return nil
		case StateUp, StateConnecting:
		default:
			return c.unavailable("disconnect")
		}

		op := c.beginOp()
		c.update(func(v *View) {
			v.State = StateDisconnecting
			v.Error = ""
			v.Message = ""
		})

		domain := c.account.Domain
		dispatchErr(c, "stop", func(ctx context.Context) error {
			return c.backend.Stop(ctx, domain)
		}, func(err error) {
			if !c.currentOp(op, "stop") {
				return
			}
			c.endOp()
			if err != nil && !errors.Is(err, ErrNotRunning) {
				c.log.Error("Failed to stop VPN for %s: %v", domain, err)
				c.fail(err)
				return
			}
			c.log.Info("VPN stopped for %s", domain)
			c.update(func(v *View) {
				v.State = StateDown
				v.Up, v.Down = nil, nil
			})
		})
		return nil
	})
}

// Retry clears the last error and re-runs the readiness check.
func (c *Controller) Retry() error {
	return c.exec(func() error {
		switch c.view.State {
		case StateConnecting, StateUp, StateDisconnecting:
			return c.unavailable("retry")
		}
		c.retry()
		return nil
	})
}

// Enable switches the VPN on for the provider, then retries.
func (c *Controller) Enable() error {
	return c.exec(func() error {
		if c.view.State != StateDisabled {
			return c.unavailable("enable")
		}
		op := c.beginOp()
		c.update(func(v *View) {
			v.State = StateWaiting
			v.Error = ""
			v.Message = ""
		})
		dispatchErr(c, "enable", c.backend.Enable, func(err error) {
			if !c.currentOp(op, "enable") {
				return
			}
			c.endOp()
			if err != nil {
				c.log.Error("Failed to enable VPN: %v", err)
				c.fail(err)
				return
			}
			c.retry()
		})
		return nil
	})
}

// InstallHelper installs the privileged helper files, then re-checks readiness.
func (c *Controller) InstallHelper() error {
	return c.exec(func() error {
		if c.view.State != StateNoHelpers {
			return c.unavailable("install helper")
		}
		op := c.beginOp()
		c.update(func(v *View) {
			v.State = StateWaiting
			v.Error = ""
			v.Message = ""
		})
		dispatchErr(c, "install", c.backend.Install, func(err error) {
			if !c.currentOp(op, "install") {
				return
			}
			c.endOp()
			if err != nil {
				c.log.Error("Failed to install helper files: %v", err)
				c.fail(err)
				return
			}
			c.checkReadiness(c.account, true)
		})
		return nil
	})
}

// Do runs the command behind a.
func (c *Controller) Do(a Action) error {
	switch a {
	case ActionConnect:
		return c.Connect()
	case ActionDisconnect:
		return c.Disconnect()
	case ActionRetry:
		return c.Retry()
	case ActionEnable:
		return c.Enable()
	case ActionInstallHelper:
		return c.InstallHelper()
	default:
		return fmt.Errorf("%w: no action", ErrCommandUnavailable)
	}
}

// retry resets the view to Waiting and starts a fresh readiness run.
// Any command still in flight is superseded.
func (c *Controller) retry() {
	c.opSeq++
	c.opPending = false
	c.update(func(v *View) {
		v.State = StateWaiting
		v.Error = ""
		v.Message = ""
		v.Ready = false
		v.Up, v.Down = nil, nil
	})
	c.checkReadiness(c.account, true)
}

func (c *Controller) unavailable(cmd string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrCommandUnavailable, cmd, c.view.State)
}

// beginOp starts a command and invalidates completions of earlier ones.
func (c *Controller) beginOp() uint64 {
	c.opSeq++
	c.opPending = true
	return c.opSeq
}

func (c *Controller) endOp() {
	c.opPending = false
}

func (c *Controller) currentOp(op uint64, what string) bool {
	if op == c.opSeq {
		return true
	}
	c.discard(what + " completion superseded")
	return false
}

func (c *Controller) discard(reason string) {
	c.log.Debug("Discarding %s (%s)", reason, c.account.Domain)
	c.rec.Discarded(reason)
}

// fail moves to Failed, or NoPolicyAgent when no authentication agent runs.
func (c *Controller) fail(err error) {
	to := StateFailed
	if errors.Is(err, ErrPolicyAgentMissing) {
		to = StateNoPolicyAgent
	}
	c.update(func(v *View) {
		v.State = to
		v.Error = err.Error()
		v.Message = ""
		v.Up, v.Down = nil, nil
	})
}

// update applies mut to the view if the resulting transition is allowed,
// starts or stops polling on entering or leaving Up, and publishes.
// A rejected transition leaves the view untouched and returns ErrInvalidTransition.
func (c *Controller) update(mut func(v *View)) error {
	next := c.view
	mut(&next)

	from, to := c.view.State, next.State
	if !CanTransition(from, to) {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		c.log.Warn("Rejected update for %s: %v", c.account.Domain, err)
		c.rec.Discarded("invalid transition")
		return err
	}
	c.view = next

	if from != to {
		c.log.Debug("%s: %s -> %s", c.account.Domain, from, to)
		c.rec.Transition(from, to)
		switch {
		case to == StateUp:
			c.schedulePoll()
		case from == StateUp:
			c.stopPolling()
		}
	}
	c.publish()
	return nil
}

func (c *Controller) publish() {
	c.mu.Lock()
	c.published = c.view
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(c.view)
	}
}

// forward hands bus events to the loop.
func (c *Controller) forward(ev Event) {
	c.post(func() { c.handleEvent(ev) })
}

func (c *Controller) handleEvent(ev Event) {
	switch ev.Name {
	case EventStatusChanged:
		c.refreshStatus()
	case EventAuthDone:
		auth, err := ParseAuthDone(ev)
		if err != nil {
			c.log.Warn("Ignoring %s: %v", ev.Name, err)
			return
		}
		c.onAuthDone(auth)
	}
}

// loop applies posted functions one at a time until Close.
func (c *Controller) loop() {
	defer close(c.loopDone)
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.inbox:
			select {
			case <-c.done:
				return
			default:
			}
			fn()
		}
	}
}

// post queues fn on the loop. It returns false once the controller is closed.
func (c *Controller) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

// exec runs fn on the loop and waits for its result.
func (c *Controller) exec(fn func() error) error {
	reply := make(chan error, 1)
	if !c.post(func() { reply <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// dispatch runs call off the loop and applies done on the loop with its result.
// Completions arriving after Close are dropped.
func dispatch[T any](c *Controller, op string, call func(context.Context) (T, error), done func(T, error)) {
	timeout := common.RequestTimeout
	if op == "start" {
		timeout = common.StartTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, timeout)
		defer cancel()

		begin := time.Now()
		v, err := call(ctx)
		elapsed := time.Since(begin)

		c.post(func() {
			c.rec.BackendCall(op, err, elapsed)
			done(v, err)
		})
	}()
}

func dispatchErr(c *Controller, op string, call func(context.Context) error, done func(error)) {
	dispatch(c, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	}, func(_ struct{}, err error) {
		done(err)
	})
}
