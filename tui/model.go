package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/yllada/vpn-panel/vpn"
)

// Commander runs the action a view offers.
type Commander interface {
	View() vpn.View
	Do(a vpn.Action) error
}

// ViewMsg is sent when the controller publishes a new view.
type ViewMsg vpn.View

// actionDoneMsg is sent when a command returned.
type actionDoneMsg struct {
	action vpn.Action
	err    error
}

// model is the VPN section rendered in the terminal.
type model struct {
	panel   Commander
	views   <-chan vpn.View
	view    vpn.View
	spinner spinner.Model
	// running is the action whose command has not returned yet.
	running vpn.Action
	err     error
	width   int
}

func newModel(panel Commander, views <-chan vpn.View) model {
	return model{
		panel: panel,
		views: views,
		view:  panel.View(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(colorConnecting)),
		),
	}
}

// Init starts the spinner and the view listener.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listenForViews(m.views))
}

// Update handles incoming messages and updates the model state
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case ViewMsg:
		m.view = vpn.View(msg)
		return m, listenForViews(m.views)

	case actionDoneMsg:
		if msg.action == m.running {
			m.running = vpn.ActionNone
		}
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "enter", " ":
			return m.run(m.view.Action())
		case "r":
			if m.view.Action() == vpn.ActionRetry {
				return m.run(vpn.ActionRetry)
			}
		}
	}
	return m, nil
}

// run starts the command for a unless one is already running.
func (m model) run(a vpn.Action) (tea.Model, tea.Cmd) {
	if a == vpn.ActionNone || m.running != vpn.ActionNone {
		return m, nil
	}
	m.running = a
	m.err = nil
	panel := m.panel
	return m, func() tea.Msg {
		return actionDoneMsg{action: a, err: panel.Do(a)}
	}
}

// View renders the VPN section.
func (m model) View() string {
	v := m.view
	var b strings.Builder

	header := titleStyle.Render("VPN")
	if v.Domain != "" {
		header += " " + domainStyle.Render(v.Domain)
	}
	b.WriteString(header + "\n\n")

	status := statusStyle(v.State).Render(stateLabel(v.State))
	if m.busy() {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(status + "\n")

	if t := traffic(v); t != "" {
		b.WriteString(trafficStyle.Render(t) + "\n")
	}
	if v.Error != "" {
		b.WriteString(errorStyle.Render(v.Error) + "\n")
	}
	if v.Message != "" {
		b.WriteString(messageStyle.Render(v.Message) + "\n")
	}
	if m.err != nil && m.err.Error() != v.Error {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}

	if a := v.Action(); a != vpn.ActionNone {
		style := buttonStyle
		if m.running != vpn.ActionNone {
			style = busyButtonStyle
		}
		b.WriteString("\n" + style.Render(a.String()) + "\n")
	}

	section := sectionStyle.Render(strings.TrimRight(b.String(), "\n"))
	return section + "\n" + helpStyle.Render(m.help()) + "\n"
}

func (m model) busy() bool {
	switch m.view.State {
	case vpn.StateConnecting, vpn.StateDisconnecting:
		return true
	case vpn.StateWaiting:
		return m.view.Error == "" && m.view.Message != vpn.MsgLoginToRenew
	}
	return m.running != vpn.ActionNone
}

func (m model) help() string {
	if a := m.view.Action(); a != vpn.ActionNone {
		return "enter: " + strings.ToLower(a.String()) + " • q: quit"
	}
	return "q: quit"
}

// stateLabel is the status line shown for s.
func stateLabel(s vpn.State) string {
	switch s {
	case vpn.StateWaiting:
		return "Checking..."
	case vpn.StateDown:
		return "Off"
	case vpn.StateConnecting:
		return "Turning on..."
	case vpn.StateUp:
		return "On"
	case vpn.StateDisconnecting:
		return "Turning off..."
	case vpn.StateFailed:
		return "Failed"
	case vpn.StateDisabled:
		return "Disabled for this provider"
	case vpn.StateNoHelpers:
		return "Helper files are not installed"
	case vpn.StateNoPolicyAgent:
		return "No authentication agent running"
	default:
		return s.String()
	}
}

// traffic formats the byte counters, or "" when there are none.
func traffic(v vpn.View) string {
	if v.Up == nil && v.Down == nil {
		return ""
	}
	var up, down uint64
	if v.Up != nil {
		up = *v.Up
	}
	if v.Down != nil {
		down = *v.Down
	}
	return "↑ " + humanize.Bytes(up) + "  ↓ " + humanize.Bytes(down)
}

// listenForViews waits for the next published view.
func listenForViews(views <-chan vpn.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return nil
		}
		return ViewMsg(v)
	}
}
