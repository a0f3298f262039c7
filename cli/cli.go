// Package cli provides command-line interface functionality for VPN Panel.
// This allows users to manage the VPN from the terminal without
// launching the tray or the terminal UI.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/journal"
	"github.com/yllada/vpn-panel/vpn"
)

// Panel is what the CLI drives.
type Panel interface {
	Account() vpn.Account
	View() vpn.View
	Do(a vpn.Action) error
}

// History lists recorded state changes.
type History interface {
	History(ctx context.Context, domain string, limit int) ([]journal.Entry, error)
}

// CLI represents the command-line interface.
type CLI struct {
	panel   Panel
	history History
	out     io.Writer
	tick    time.Duration
	timeout time.Duration
}

// New creates a new CLI instance. history may be nil when the journal is off.
func New(panel Panel, history History) *CLI {
	return &CLI{
		panel:   panel,
		history: history,
		out:     os.Stdout,
		tick:    100 * time.Millisecond,
		timeout: common.ConnectionTimeout,
	}
}

// Status shows the current connection status.
func (c *CLI) Status(ctx context.Context) error {
	v, err := c.settled(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tPROVIDER\tSTATE\tTRAFFIC\tDETAIL")
	fmt.Fprintln(w, "-------\t--------\t-----\t-------\t------")

	account := c.panel.Account().ID
	if account == "" {
		account = "-"
	}
	provider := v.Domain
	if provider == "" {
		provider = "-"
	}
	detail := v.Error
	if detail == "" {
		detail = v.Message
	}
	if detail == "" {
		detail = "-"
	}

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", account, provider, v.State, formatTraffic(v), detail)
	return w.Flush()
}

// Connect turns the VPN on and waits until the tunnel is up.
func (c *CLI) Connect(ctx context.Context) error {
	v, err := c.settled(ctx)
	if err != nil {
		return err
	}
	if v.State == vpn.StateUp {
		return fmt.Errorf("already connected to %s", v.Domain)
	}

	if v.State == vpn.StateFailed {
		fmt.Fprintf(c.out, "Retrying %s...\n", v.Domain)
		if err := c.panel.Do(vpn.ActionRetry); err != nil {
			return fmt.Errorf("retry failed: %w", err)
		}
		if v, err = c.settled(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.out, "Connecting to %s...\n", v.Domain)
	if err := c.panel.Do(vpn.ActionConnect); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	v, err = c.waitFor(ctx, func(v vpn.View) bool {
		return v.State != vpn.StateConnecting && v.State != vpn.StateWaiting
	})
	if err != nil {
		return err
	}
	if v.State != vpn.StateUp {
		return fmt.Errorf("connection failed: %s", describe(v))
	}
	fmt.Fprintf(c.out, "✓ Connected to %s\n", v.Domain)
	return nil
}

// Disconnect turns the VPN off.
func (c *CLI) Disconnect(ctx context.Context) error {
	v, err := c.settled(ctx)
	if err != nil {
		return err
	}
	if v.State != vpn.StateUp && v.State != vpn.StateConnecting {
		fmt.Fprintln(c.out, "No active connection.")
		return nil
	}

	fmt.Fprintf(c.out, "Disconnecting from %s...\n", v.Domain)
	if err := c.panel.Do(vpn.ActionDisconnect); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	v, err = c.waitFor(ctx, func(v vpn.View) bool { return v.State != vpn.StateDisconnecting })
	if err != nil {
		return err
	}
	if v.State != vpn.StateDown {
		return fmt.Errorf("failed to disconnect: %s", describe(v))
	}
	fmt.Fprintf(c.out, "✓ Disconnected from %s\n", v.Domain)
	return nil
}

// History prints the most recent state changes.
func (c *CLI) History(ctx context.Context, limit int) error {
	if c.history == nil {
		return errors.New("the journal is disabled in the configuration")
	}
	entries, err := c.history.History(ctx, "", limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No recorded state changes.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tPROVIDER\tSTATE\tDETAIL")
	fmt.Fprintln(w, "----\t--------\t-----\t------")
	for _, e := range entries {
		detail := e.Error
		if detail == "" {
			detail = e.Message
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", humanize.Time(e.Time), e.Domain, e.State, detail)
	}
	return w.Flush()
}

// settled waits until the view leaves Waiting or reports why it cannot.
func (c *CLI) settled(ctx context.Context) (vpn.View, error) {
	return c.waitFor(ctx, func(v vpn.View) bool {
		return v.State != vpn.StateWaiting || v.Error != "" || v.Message == vpn.MsgLoginToRenew
	})
}

// waitFor polls the panel until done reports true, ctx ends or the
// connection timeout passes.
func (c *CLI) waitFor(ctx context.Context, done func(vpn.View) bool) (vpn.View, error) {
	v := c.panel.View()
	if done(v) {
		return v, nil
	}

	timeout := time.After(c.timeout)
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-timeout:
			return v, fmt.Errorf("%w: VPN is still %s", common.ErrTimeout, v.State)
		case <-ticker.C:
			v = c.panel.View()
			if done(v) {
				return v, nil
			}
		}
	}
}

func describe(v vpn.View) string {
	switch {
	case v.Error != "":
		return v.Error
	case v.Message != "":
		return v.Message
	default:
		return "VPN is " + v.State.String()
	}
}

func formatTraffic(v vpn.View) string {
	if v.Up == nil && v.Down == nil {
		return "-"
	}
	var up, down uint64
	if v.Up != nil {
		up = *v.Up
	}
	if v.Down != nil {
		down = *v.Down
	}
	return fmt.Sprintf("↑%s ↓%s", humanize.Bytes(up), humanize.Bytes(down))
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`VPN Panel - Command Line Interface

Usage:
  vpn-panel [OPTIONS]

Options:
  --version         Show version and exit
  --verbose         Enable verbose logging
  --config PATH     Use another configuration file
  --status          Show current connection status
  --connect         Turn the VPN on for the active account
  --disconnect      Turn the VPN off
  --history N       Show the last N state changes
  --tray            Show the system tray indicator
  --serve ADDR      Serve the local status API on ADDR
  --help            Show this help message

Examples:
  vpn-panel --status
  vpn-panel --connect
  vpn-panel --history 50
  vpn-panel --tray

Notes:
  - The bitmask daemon must be running
  - Run without options in a terminal to open the interactive view`)
}
