package tui

import (
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/vpn-panel/vpn"
)

type fakePanel struct {
	mu   sync.Mutex
	view vpn.View
	done []vpn.Action
	err  error
}

func (p *fakePanel) View() vpn.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *fakePanel) Do(a vpn.Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, a)
	return p.err
}

func u64(v uint64) *uint64 { return &v }

func key(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_RendersView(t *testing.T) {
	p := &fakePanel{view: vpn.View{
		Domain: "example.org",
		State:  vpn.StateUp,
		Up:     u64(1500),
		Down:   u64(2_000_000),
		Ready:  true,
	}}
	m := newModel(p, make(chan vpn.View))

	out := m.View()
	assert.Contains(t, out, "example.org")
	assert.Contains(t, out, "On")
	assert.Contains(t, out, "1.5 kB")
	assert.Contains(t, out, "2.0 MB")
	assert.Contains(t, out, "Turn OFF")
}

func TestModel_ViewMsg(t *testing.T) {
	views := make(chan vpn.View, 1)
	m := newModel(&fakePanel{}, views)

	failed := vpn.View{Domain: "example.org", State: vpn.StateFailed, Error: "port busy", Ready: true}
	next, cmd := m.Update(ViewMsg(failed))
	require.NotNil(t, cmd, "the model keeps listening")

	out := next.View()
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "port busy")
	assert.Contains(t, out, "Retry")

	views <- vpn.View{State: vpn.StateDown}
	msg := cmd()
	assert.Equal(t, ViewMsg(vpn.View{State: vpn.StateDown}), msg)
}

func TestModel_EnterRunsAction(t *testing.T) {
	p := &fakePanel{view: vpn.View{Domain: "example.org", State: vpn.StateDown, Ready: true}}
	m := newModel(p, make(chan vpn.View))

	next, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, vpn.ActionConnect, next.(model).running)

	// A second press while the command runs does nothing.
	again, none := next.Update(key("enter"))
	assert.Nil(t, none)

	done := cmd()
	assert.Equal(t, actionDoneMsg{action: vpn.ActionConnect}, done)
	assert.Equal(t, []vpn.Action{vpn.ActionConnect}, p.done)

	final, _ := again.Update(done)
	assert.Equal(t, vpn.ActionNone, final.(model).running)
}

func TestModel_ActionError(t *testing.T) {
	p := &fakePanel{
		view: vpn.View{Domain: "example.org", State: vpn.StateDown, Ready: true},
		err:  errors.New("cannot connect while waiting"),
	}
	m := newModel(p, make(chan vpn.View))

	next, cmd := m.Update(key("enter"))
	next, _ = next.Update(cmd())

	assert.Contains(t, next.View(), "cannot connect while waiting")
}

func TestModel_NoActionWhileWaiting(t *testing.T) {
	p := &fakePanel{view: vpn.View{Domain: "example.org", State: vpn.StateWaiting}}
	m := newModel(p, make(chan vpn.View))

	_, cmd := m.Update(key("enter"))
	assert.Nil(t, cmd)
	_, cmd = m.Update(key("r"))
	assert.Nil(t, cmd)
	assert.Empty(t, p.done)
}

func TestModel_Quit(t *testing.T) {
	m := newModel(&fakePanel{}, make(chan vpn.View))

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestTraffic(t *testing.T) {
	assert.Equal(t, "", traffic(vpn.View{}))
	assert.Equal(t, "↑ 0 B  ↓ 4.1 kB", traffic(vpn.View{Down: u64(4096)}))
}

func TestApp_ObserveKeepsLatest(t *testing.T) {
	a := New(&fakePanel{})
	for i := 0; i < 40; i++ {
		a.Observe(vpn.View{Up: u64(uint64(i))})
	}

	var last vpn.View
	for len(a.views) > 0 {
		last = <-a.views
	}
	require.NotNil(t, last.Up)
	assert.Equal(t, uint64(39), *last.Up)
}
