// Package tray provides the system tray indicator.
package tray

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/systray"
	"github.com/dustin/go-humanize"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

// Commander runs the action a view offers.
type Commander interface {
	View() vpn.View
	Do(a vpn.Action) error
}

// menuState is what the tray shows for one view.
type menuState struct {
	icon    []byte
	tooltip string
	status  string
	traffic string
	detail  string
	action  vpn.Action
}

func stateFor(v vpn.View) menuState {
	provider := v.Domain
	if provider == "" {
		provider = "no provider"
	}

	st := menuState{
		icon:   iconFor(v.State),
		action: v.Action(),
		detail: v.Error,
	}
	if st.detail == "" {
		st.detail = v.Message
	}

	switch v.State {
	case vpn.StateUp:
		st.status = "●  Connected to " + provider
		st.tooltip = fmt.Sprintf("%s - Connected to %s", common.AppName, provider)
	case vpn.StateConnecting:
		st.status = "◌  Connecting to " + provider + "..."
		st.tooltip = fmt.Sprintf("%s - Connecting to %s...", common.AppName, provider)
	case vpn.StateDisconnecting:
		st.status = "◌  Disconnecting..."
		st.tooltip = common.AppName + " - Disconnecting..."
	case vpn.StateFailed:
		st.status = "✕  Connection failed"
		st.tooltip = common.AppName + " - Error"
	case vpn.StateDown:
		st.status = "○  Not Connected"
		st.tooltip = common.AppName + " - Disconnected"
	case vpn.StateDisabled:
		st.status = "○  VPN disabled for " + provider
		st.tooltip = common.AppName + " - Disabled"
	case vpn.StateNoHelpers:
		st.status = "!  Helper files missing"
		st.tooltip = common.AppName + " - Helper files missing"
	case vpn.StateNoPolicyAgent:
		st.status = "!  No authentication agent"
		st.tooltip = common.AppName + " - No authentication agent"
	default:
		st.status = "…  Checking " + provider
		st.tooltip = common.AppName
	}

	if v.State == vpn.StateUp && (v.Up != nil || v.Down != nil) {
		var up, down uint64
		if v.Up != nil {
			up = *v.Up
		}
		if v.Down != nil {
			down = *v.Down
		}
		st.traffic = fmt.Sprintf("    ↑ %s  ↓ %s", humanize.Bytes(up), humanize.Bytes(down))
	}
	return st
}

// Indicator manages the system tray icon and menu.
type Indicator struct {
	panel  Commander
	onQuit func()
	log    common.Logger

	mu          sync.Mutex
	ready       bool
	view        vpn.View
	connectTime time.Time

	statusItem  *systray.MenuItem
	trafficItem *systray.MenuItem
	uptimeItem  *systray.MenuItem
	detailItem  *systray.MenuItem
	actionItem  *systray.MenuItem

	uptimeStop chan struct{}
}

// New creates an indicator for panel. onQuit runs when the user picks Quit.
func New(panel Commander, onQuit func()) *Indicator {
	return &Indicator{
		panel:      panel,
		onQuit:     onQuit,
		log:        common.Component("tray"),
		view:       panel.View(),
		uptimeStop: make(chan struct{}),
	}
}

// Run starts the system tray indicator and blocks until Quit.
func (t *Indicator) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the indicator.
func (t *Indicator) Quit() {
	systray.Quit()
}

// Observe receives every published view.
func (t *Indicator) Observe(v vpn.View) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v.State == vpn.StateUp && (t.view.State != vpn.StateUp || t.view.Domain != v.Domain) {
		t.connectTime = time.Now()
	}
	t.view = v
	if t.ready {
		t.render()
	}
}

func (t *Indicator) onReady() {
	systray.SetTitle(common.AppName)

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("○  Not Connected", "Current VPN status")
	t.statusItem.Disable()
	t.trafficItem = systray.AddMenuItem("", "Traffic")
	t.trafficItem.Disable()
	t.uptimeItem = systray.AddMenuItem("    ⏱ Uptime: --:--:--", "Connection duration")
	t.uptimeItem.Disable()
	t.detailItem = systray.AddMenuItem("", "Details")
	t.detailItem.Disable()

	systray.AddSeparator()

	t.actionItem = systray.AddMenuItem("", "Run the offered action")

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Close "+common.AppName)

	t.ready = true
	t.render()
	t.mu.Unlock()

	go func() {
		for range t.actionItem.ClickedCh {
			t.runAction()
		}
	}()
	go func() {
		for range quitItem.ClickedCh {
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()
		}
	}()
	go t.runUptime()
}

func (t *Indicator) onExit() {
	close(t.uptimeStop)
	common.LogInfo("Tray indicator cleanup completed")
}

// render applies the current view to the menu. Callers hold mu.
func (t *Indicator) render() {
	st := stateFor(t.view)

	systray.SetIcon(st.icon)
	systray.SetTooltip(st.tooltip)
	t.statusItem.SetTitle(st.status)

	showIf(t.trafficItem, st.traffic)
	showIf(t.detailItem, st.detail)
	if t.view.State == vpn.StateUp {
		t.uptimeItem.SetTitle(formatUptime(time.Since(t.connectTime)))
		t.uptimeItem.Show()
	} else {
		t.uptimeItem.Hide()
	}

	if st.action == vpn.ActionNone {
		t.actionItem.Hide()
		return
	}
	t.actionItem.SetTitle(st.action.String())
	t.actionItem.Show()
}

func (t *Indicator) runAction() {
	a := t.panel.View().Action()
	if a == vpn.ActionNone {
		return
	}
	if err := t.panel.Do(a); err != nil {
		t.log.Warn("Tray action %s failed: %v", a, err)
	}
}

// runUptime refreshes the uptime item once a second while connected.
func (t *Indicator) runUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.uptimeStop:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.view.State == vpn.StateUp {
				t.uptimeItem.SetTitle(formatUptime(time.Since(t.connectTime)))
			}
			t.mu.Unlock()
		}
	}
}

func showIf(item *systray.MenuItem, title string) {
	if title == "" {
		item.Hide()
		return
	}
	item.SetTitle(title)
	item.Show()
}

func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("    ⏱ Uptime: %02d:%02d:%02d", hours, minutes, seconds)
}
