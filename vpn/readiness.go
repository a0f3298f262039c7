package vpn

import (
	"context"
	"errors"
	"strings"
)

// readinessRun is one pass of the readiness flow for a domain. A run that
// does not display only renews credentials; its results never reach the view.
type readinessRun struct {
	account Account
	display bool
	seq     uint64
	renewed bool
}

// checkReadiness starts a readiness run for account, superseding any
// earlier run for the same domain.
func (c *Controller) checkReadiness(account Account, display bool) {
	c.readySeq[account.Domain]++
	c.check(&readinessRun{
		account: account,
		display: display,
		seq:     c.readySeq[account.Domain],
	})
}

func (c *Controller) check(run *readinessRun) {
	domain := run.account.Domain
	dispatch(c, "check", func(ctx context.Context) (Readiness, error) {
		return c.backend.Check(ctx, domain)
	}, func(r Readiness, err error) {
		if !c.currentRun(run, "readiness check") {
			return
		}
		c.onReadiness(run, r, err)
	})
}

func (c *Controller) currentRun(run *readinessRun, what string) bool {
	if c.readySeq[run.account.Domain] == run.seq {
		return true
	}
	c.log.Debug("Readiness run %d for %s is stale", run.seq, run.account.Domain)
	c.discard(what + " superseded")
	return false
}

func (c *Controller) onReadiness(run *readinessRun, r Readiness, err error) {
	switch {
	case errors.Is(err, ErrMissingCertificate):
		c.renew(run)
	case err != nil:
		c.runFailed(run, err)
	case !r.VPNEnabled:
		c.settle(run, func(v *View) {
			v.State = StateDisabled
			v.Error = ""
			v.Message = ""
		})
	case !r.Installed:
		c.settle(run, func(v *View) {
			v.State = StateNoHelpers
			v.Error = ""
			v.Message = ""
		})
	case !r.VPNReady:
		c.renew(run)
	default:
		c.ready(run)
	}
}

// renew fetches a fresh certificate and checks again. Only one renewal is
// attempted per run.
func (c *Controller) renew(run *readinessRun) {
	if run.renewed {
		c.runFailed(run, NewBackendError("check", ErrMissingCertificate,
			"VPN certificate still missing after renewal"))
		return
	}
	if !run.account.Authenticated {
		c.log.Info("VPN certificate for %s needs renewal, waiting for login", run.account.Domain)
		c.settle(run, func(v *View) {
			v.State = StateWaiting
			v.Error = ""
			v.Message = MsgLoginToRenew
		})
		return
	}

	run.renewed = true
	c.log.Info("Renewing VPN certificate for %s", run.account.ID)
	c.settle(run, func(v *View) {
		v.Message = MsgRenewing
	})

	id := run.account.ID
	dispatchErr(c, "get_cert", func(ctx context.Context) error {
		return c.backend.GetCertificate(ctx, id)
	}, func(err error) {
		if !c.currentRun(run, "certificate renewal") {
			return
		}
		if err != nil {
			c.runFailed(run, err)
			return
		}
		c.check(run)
	})
}

func (c *Controller) ready(run *readinessRun) {
	c.log.Info("VPN ready for %s", run.account.Domain)
	if !run.display {
		if strings.EqualFold(run.account.Domain, c.account.Domain) {
			c.refreshStatus()
		}
		return
	}
	c.update(func(v *View) {
		v.Ready = true
		v.Error = ""
		v.Message = ""
	})
	c.refreshStatus()
}

func (c *Controller) runFailed(run *readinessRun, err error) {
	if !run.display {
		c.log.Warn("Background readiness check for %s failed: %v", run.account.Domain, err)
		return
	}
	c.log.Error("Readiness check for %s failed: %v", run.account.Domain, err)
	c.fail(err)
}

// settle applies mut only for runs that drive the view.
func (c *Controller) settle(run *readinessRun, mut func(v *View)) {
	if !run.display {
		return
	}
	c.update(mut)
}

// onAuthDone reacts to a completed login. The login may belong to another
// provider than the displayed one; its credentials are still renewed.
func (c *Controller) onAuthDone(auth AuthDone) {
	target := Account{
		ID:            auth.Address,
		Domain:        auth.Domain(),
		Authenticated: true,
	}
	if !strings.EqualFold(target.Domain, c.account.Domain) {
		c.log.Debug("Login for %s, renewing in background", target.Domain)
		c.checkReadiness(target, false)
		return
	}
	target.Domain = c.account.Domain

	switch c.view.State {
	case StateConnecting, StateUp, StateDisconnecting:
		// Leave the running tunnel alone.
		c.checkReadiness(target, false)
		return
	}
	c.opSeq++
	c.opPending = false
	c.update(func(v *View) {
		v.State = StateWaiting
		v.Error = ""
		v.Message = ""
		v.Ready = false
		v.Up, v.Down = nil, nil
	})
	c.checkReadiness(target, true)
}
