package vpn

import (
	"errors"
	"time"
)

// schedulePoll arms a single status poll. The next one is armed only after
// the previous poll settled and the tunnel is still up.
func (c *Controller) schedulePoll() {
	c.stopPolling()
	gen := c.pollGen
	c.pollTimer = time.AfterFunc(c.pollInterval, func() {
		c.post(func() {
			if gen != c.pollGen || c.view.State != StateUp {
				return
			}
			c.poll(gen)
		})
	})
}

// stopPolling cancels the armed timer and invalidates ticks already queued.
func (c *Controller) stopPolling() {
	c.pollGen++
	if c.pollTimer != nil {
		c.pollTimer.Stop()
		c.pollTimer = nil
	}
}

func (c *Controller) poll(gen uint64) {
	c.pollTimer = nil
	op := c.opSeq
	dispatch(c, "status", c.backend.Status, func(s StatusSnapshot, err error) {
		if gen != c.pollGen {
			c.discard("status poll after polling stopped")
			return
		}
		c.applyStatus(op, s, err)
		if gen == c.pollGen && c.view.State == StateUp {
			c.schedulePoll()
		}
	})
}

// refreshStatus fetches the status once, outside the poll schedule.
func (c *Controller) refreshStatus() {
	if !c.view.Ready {
		c.log.Debug("Skipping status refresh for %s until ready", c.account.Domain)
		return
	}
	op := c.opSeq
	dispatch(c, "status", c.backend.Status, func(s StatusSnapshot, err error) {
		c.applyStatus(op, s, err)
	})
}

// applyStatus maps a status snapshot onto the view. Snapshots issued before
// the latest command, received while a command is in flight, or describing
// another provider's tunnel are dropped.
func (c *Controller) applyStatus(op uint64, s StatusSnapshot, err error) {
	switch {
	case op != c.opSeq || c.opPending:
		c.discard("status superseded by command")
		return
	case !c.view.Ready:
		c.discard("status before readiness")
		return
	}

	if err != nil {
		if errors.Is(err, ErrUnknownStatus) {
			c.log.Warn("Unknown VPN status for %s: %v", c.account.Domain, err)
			c.update(func(v *View) {
				v.State = StateWaiting
				v.Error = err.Error()
				v.Message = ""
				v.Up, v.Down = nil, nil
			})
			return
		}
		c.log.Error("Failed to get VPN status: %v", err)
		c.fail(err)
		return
	}

	if !s.appliesTo(c.account.Domain) {
		if c.view.State == StateWaiting {
			// Whatever runs is not this provider's tunnel.
			c.log.Debug("Tunnel of %q is running, %s is down", s.Domain, c.account.Domain)
			c.update(func(v *View) {
				v.State = StateDown
				v.Error = ""
				v.Message = ""
				v.Up, v.Down = nil, nil
			})
			return
		}
		c.log.Debug("Status describes the tunnel of %s", s.Domain)
		c.discard("status for another provider")
		return
	}

	c.update(func(v *View) {
		v.Error = ""
		v.Message = ""
		v.Up, v.Down = nil, nil
		switch s.Status {
		case StatusOn:
			v.State = StateUp
			v.Up, v.Down = s.Up, s.Down
		case StatusOff:
			v.State = StateDown
		case StatusStarting:
			v.State = StateConnecting
		case StatusStopping:
			v.State = StateDisconnecting
		case StatusFailed:
			v.State = StateFailed
			v.Error = s.Error
			if v.Error == "" {
				v.Error = "VPN failed"
			}
		case StatusDisabled:
			v.State = StateDisabled
			v.Ready = false
		}
	})
}
