// Package tui renders the VPN section in a terminal.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/vpn-panel/vpn"
)

// App is the terminal front end of a panel.
type App struct {
	program *tea.Program
	views   chan vpn.View
}

// New creates the application. Register Observe with the panel before
// calling Run.
func New(panel Commander, opts ...tea.ProgramOption) *App {
	views := make(chan vpn.View, 16)
	return &App{
		program: tea.NewProgram(newModel(panel, views), opts...),
		views:   views,
	}
}

// Observe queues a published view for rendering. When the queue is full the
// oldest view is dropped; only the latest one matters.
func (a *App) Observe(v vpn.View) {
	for {
		select {
		case a.views <- v:
			return
		default:
		}
		select {
		case <-a.views:
		default:
		}
	}
}

// Run starts the TUI application and blocks until it exits
func (a *App) Run() error {
	_, err := a.program.Run()
	return err
}

// Quit stops a running application.
func (a *App) Quit() {
	a.program.Quit()
}
