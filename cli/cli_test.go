package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/journal"
	"github.com/yllada/vpn-panel/vpn"
)

// scriptedPanel moves through views as actions arrive.
type scriptedPanel struct {
	mu    sync.Mutex
	view  vpn.View
	after map[vpn.Action][]vpn.View
	done  []vpn.Action
}

func (p *scriptedPanel) Account() vpn.Account {
	return vpn.Account{ID: "alice@example.org", Domain: "example.org"}
}

func (p *scriptedPanel) View() vpn.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.view
	// Each read advances one step of the pending script.
	if steps := p.after[vpn.ActionNone]; len(steps) > 0 {
		p.view = steps[0]
		p.after[vpn.ActionNone] = steps[1:]
	}
	return v
}

func (p *scriptedPanel) Do(a vpn.Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, a)
	steps, ok := p.after[a]
	if !ok {
		return errors.New("cannot " + a.String())
	}
	p.view = steps[0]
	p.after[vpn.ActionNone] = steps[1:]
	return nil
}

func view(state vpn.State) vpn.View {
	return vpn.View{Domain: "example.org", State: state, Ready: true}
}

func newTestCLI(p Panel, h History) (*CLI, *bytes.Buffer) {
	var out bytes.Buffer
	c := New(p, h)
	c.out = &out
	c.tick = time.Millisecond
	c.timeout = time.Second
	return c, &out
}

func TestCLI_Connect(t *testing.T) {
	p := &scriptedPanel{
		view: view(vpn.StateDown),
		after: map[vpn.Action][]vpn.View{
			vpn.ActionConnect: {view(vpn.StateConnecting), view(vpn.StateConnecting), view(vpn.StateUp)},
		},
	}
	c, out := newTestCLI(p, nil)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !strings.Contains(out.String(), "✓ Connected to example.org") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCLI_ConnectFailure(t *testing.T) {
	failed := view(vpn.StateFailed)
	failed.Error = "port busy"
	p := &scriptedPanel{
		view: view(vpn.StateDown),
		after: map[vpn.Action][]vpn.View{
			vpn.ActionConnect: {view(vpn.StateConnecting), failed},
		},
	}
	c, _ := newTestCLI(p, nil)

	err := c.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "port busy") {
		t.Fatalf("Connect() error = %v, want port busy", err)
	}
}

func TestCLI_ConnectRetriesFailed(t *testing.T) {
	failed := view(vpn.StateFailed)
	failed.Error = "VPN failed"
	p := &scriptedPanel{
		view: failed,
		after: map[vpn.Action][]vpn.View{
			vpn.ActionRetry:   {{Domain: "example.org", State: vpn.StateWaiting}, view(vpn.StateDown)},
			vpn.ActionConnect: {view(vpn.StateUp)},
		},
	}
	c, _ := newTestCLI(p, nil)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	want := []vpn.Action{vpn.ActionRetry, vpn.ActionConnect}
	if len(p.done) != 2 || p.done[0] != want[0] || p.done[1] != want[1] {
		t.Errorf("actions = %v, want %v", p.done, want)
	}
}

func TestCLI_ConnectAlreadyUp(t *testing.T) {
	c, _ := newTestCLI(&scriptedPanel{view: view(vpn.StateUp)}, nil)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect() error = nil, want already connected")
	}
}

func TestCLI_ConnectTimesOut(t *testing.T) {
	c, _ := newTestCLI(&scriptedPanel{view: vpn.View{Domain: "example.org", State: vpn.StateWaiting}}, nil)
	c.timeout = 20 * time.Millisecond

	err := c.Connect(context.Background())
	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("Connect() error = %v, want ErrTimeout", err)
	}
}

func TestCLI_Disconnect(t *testing.T) {
	tests := []struct {
		name    string
		start   vpn.View
		after   []vpn.View
		wantOut string
		wantErr bool
	}{
		{"up", view(vpn.StateUp), []vpn.View{view(vpn.StateDisconnecting), view(vpn.StateDown)}, "✓ Disconnected from example.org", false},
		{"already down", view(vpn.StateDown), nil, "No active connection.", false},
		{"stop fails", view(vpn.StateUp), []vpn.View{{Domain: "example.org", State: vpn.StateFailed, Error: "stop failed"}}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedPanel{view: tt.start, after: map[vpn.Action][]vpn.View{}}
			if tt.after != nil {
				p.after[vpn.ActionDisconnect] = tt.after
			}
			c, out := newTestCLI(p, nil)

			err := c.Disconnect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Disconnect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestCLI_Status(t *testing.T) {
	up := view(vpn.StateUp)
	down := uint64(4096)
	up.Down = &down
	c, out := newTestCLI(&scriptedPanel{view: up}, nil)

	if err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	for _, want := range []string{"alice@example.org", "example.org", "up", "↓4.1 kB"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}
}

type stubHistory []journal.Entry

func (h stubHistory) History(context.Context, string, int) ([]journal.Entry, error) {
	return h, nil
}

func TestCLI_History(t *testing.T) {
	h := stubHistory{
		{Time: time.Now().Add(-time.Minute), Domain: "example.org", State: "failed", Error: "port busy"},
	}
	c, out := newTestCLI(&scriptedPanel{}, h)

	if err := c.History(context.Background(), 10); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	for _, want := range []string{"failed", "port busy", "ago"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}

	c, _ = newTestCLI(&scriptedPanel{}, nil)
	if err := c.History(context.Background(), 10); err == nil {
		t.Error("History() without journal should fail")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		view vpn.View
		want string
	}{
		{vpn.View{State: vpn.StateFailed, Error: "boom"}, "boom"},
		{vpn.View{State: vpn.StateWaiting, Message: vpn.MsgLoginToRenew}, vpn.MsgLoginToRenew},
		{vpn.View{State: vpn.StateDown}, "VPN is down"},
	}
	for _, tt := range tests {
		if got := describe(tt.view); got != tt.want {
			t.Errorf("describe(%v) = %q, want %q", tt.view.State, got, tt.want)
		}
	}
}
