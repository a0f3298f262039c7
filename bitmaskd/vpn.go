package bitmaskd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

// Daemon commands.
const (
	cmdCheck      = "vpn/check"
	cmdGetCert    = "vpn/get_cert"
	cmdStart      = "vpn/start"
	cmdStop       = "vpn/stop"
	cmdStatus     = "vpn/status"
	cmdInstall    = "vpn/install"
	cmdEnable     = "vpn/enable"
	cmdActiveUser = "bonafide/user/active"
	cmdRegister   = "events/register"
	cmdPoll       = "events/poll"
)

var _ vpn.Backend = (*Client)(nil)

type checkResult struct {
	VPN       string `json:"vpn"`
	Installed bool   `json:"installed"`
	VPNReady  bool   `json:"vpn_ready"`
}

// Check reports whether the VPN can start for domain.
func (c *Client) Check(ctx context.Context, domain string) (vpn.Readiness, error) {
	var res checkResult
	if err := c.call(ctx, cmdCheck, &res, domain); err != nil {
		return vpn.Readiness{}, err
	}
	return vpn.Readiness{
		Installed:  res.Installed,
		VPNReady:   res.VPNReady,
		VPNEnabled: res.VPN != "disabled",
	}, nil
}

// GetCertificate downloads a fresh VPN certificate for the account.
func (c *Client) GetCertificate(ctx context.Context, accountID string) error {
	return c.call(ctx, cmdGetCert, nil, accountID)
}

// Start brings the tunnel up for domain. The daemon answers once the tunnel
// runs, so the call may outlast the client's request timeout.
func (c *Client) Start(ctx context.Context, domain string) error {
	return c.do(ctx, cmdStart, nil, max(c.timeout, common.StartTimeout), domain)
}

// Stop tears the tunnel down. The daemon stops whatever tunnel runs, so
// domain is only used for logging.
func (c *Client) Stop(ctx context.Context, domain string) error {
	common.LogDebug("Stopping VPN for %s", domain)
	return c.call(ctx, cmdStop, nil)
}

// Install installs the privileged helper files.
func (c *Client) Install(ctx context.Context) error {
	return c.call(ctx, cmdInstall, nil)
}

// Enable switches the VPN service on.
func (c *Client) Enable(ctx context.Context) error {
	return c.call(ctx, cmdEnable, nil)
}

// throughput is a byte counter the daemon sends either as a number or as a
// human readable string such as "1.2K".
type throughput struct {
	v *uint64
}

func (t *throughput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.v = nil
		return nil
	}

	var n uint64
	if data[0] != '"' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		n = uint64(f)
		t.v = &n
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		t.v = nil
		return nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("parsing throughput %q: %w", s, err)
	}
	t.v = &n
	return nil
}

type statusResult struct {
	Domain *string    `json:"domain"`
	Status string     `json:"status"`
	Error  *string    `json:"error"`
	Up     throughput `json:"up"`
	Down   throughput `json:"down"`
}

// Status reports the running tunnel. Unknown status strings fail with
// vpn.ErrUnknownStatus.
func (c *Client) Status(ctx context.Context) (vpn.StatusSnapshot, error) {
	var res statusResult
	if err := c.call(ctx, cmdStatus, &res); err != nil {
		return vpn.StatusSnapshot{}, err
	}

	status, err := vpn.ParseStatus(res.Status)
	if err != nil {
		return vpn.StatusSnapshot{}, err
	}
	snap := vpn.StatusSnapshot{
		Status: status,
		Up:     res.Up.v,
		Down:   res.Down.v,
	}
	if res.Domain != nil {
		snap.Domain = *res.Domain
	}
	if res.Error != nil {
		snap.Error = *res.Error
	}
	return snap, nil
}

type activeUserResult struct {
	User          string `json:"user"`
	Authenticated bool   `json:"authenticated"`
}

// ActiveAccount returns the account the daemon considers active. An empty
// address yields an unauthenticated account without a domain.
func (c *Client) ActiveAccount(ctx context.Context) (vpn.Account, error) {
	var res activeUserResult
	if err := c.call(ctx, cmdActiveUser, &res); err != nil {
		return vpn.Account{}, err
	}
	if res.User == "" {
		return vpn.Account{}, nil
	}
	return vpn.Account{
		ID:            res.User,
		Domain:        common.DomainOf(res.User),
		Authenticated: res.Authenticated,
	}, nil
}
