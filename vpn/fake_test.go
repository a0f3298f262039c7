package vpn

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// hooks answer the fake backend's calls.
type hooks struct {
	check   func(ctx context.Context, domain string) (Readiness, error)
	getCert func(ctx context.Context, id string) error
	start   func(ctx context.Context, domain string) error
	stop    func(ctx context.Context, domain string) error
	status  func(ctx context.Context) (StatusSnapshot, error)
	install func(ctx context.Context) error
	enable  func(ctx context.Context) error
}

// fakeBackend records calls and answers through overridable hooks.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	h     hooks
}

var readyResult = Readiness{Installed: true, VPNReady: true, VPNEnabled: true}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{h: hooks{
		check: func(context.Context, string) (Readiness, error) {
			return readyResult, nil
		},
		status: func(context.Context) (StatusSnapshot, error) {
			return StatusSnapshot{Status: StatusOff}, nil
		},
	}}
}

func (f *fakeBackend) record(call string) hooks {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.h
}

func (f *fakeBackend) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == prefix || strings.HasPrefix(c, prefix+" ") {
			n++
		}
	}
	return n
}

// with changes hooks while the controller may be calling them.
func (f *fakeBackend) with(fn func(h *hooks)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.h)
}

func (f *fakeBackend) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Check(ctx context.Context, domain string) (Readiness, error) {
	h := f.record("check " + domain)
	return h.check(ctx, domain)
}

func (f *fakeBackend) GetCertificate(ctx context.Context, id string) error {
	h := f.record("get_cert " + id)
	if h.getCert == nil {
		return nil
	}
	return h.getCert(ctx, id)
}

func (f *fakeBackend) Start(ctx context.Context, domain string) error {
	h := f.record("start " + domain)
	if h.start == nil {
		return nil
	}
	return h.start(ctx, domain)
}

func (f *fakeBackend) Stop(ctx context.Context, domain string) error {
	h := f.record("stop " + domain)
	if h.stop == nil {
		return nil
	}
	return h.stop(ctx, domain)
}

func (f *fakeBackend) Status(ctx context.Context) (StatusSnapshot, error) {
	h := f.record("status")
	return h.status(ctx)
}

func (f *fakeBackend) Install(ctx context.Context) error {
	h := f.record("install")
	if h.install == nil {
		return nil
	}
	return h.install(ctx)
}

func (f *fakeBackend) Enable(ctx context.Context) error {
	h := f.record("enable")
	if h.enable == nil {
		return nil
	}
	return h.enable(ctx)
}

// fakeRecorder counts telemetry callbacks.
type fakeRecorder struct {
	mu          sync.Mutex
	transitions []string
	discarded   []string
}

func (r *fakeRecorder) Transition(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from.String()+"->"+to.String())
}

func (r *fakeRecorder) BackendCall(string, error, time.Duration) {}

func (r *fakeRecorder) Discarded(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded = append(r.discarded, reason)
}

func (r *fakeRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transitions...)
}

func (r *fakeRecorder) discards() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.discarded)
}

// nopLogger keeps test output quiet.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// gate blocks a backend call until released or the call is cancelled.
type gate chan struct{}

func (g gate) wait(ctx context.Context) error {
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusOn(domain string) StatusSnapshot {
	up, down := uint64(1024), uint64(4096)
	return StatusSnapshot{Domain: domain, Status: StatusOn, Up: &up, Down: &down}
}

func newTestController(t *testing.T, b Backend, bus *EventBus, account Account, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(nopLogger{}), WithPollInterval(10 * time.Millisecond)}, opts...)
	c := New(b, bus, account, opts...)
	t.Cleanup(c.Close)
	return c
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.View().State == want
	}, 2*time.Second, 5*time.Millisecond, "state never became %s (last %s)", want, c.View().State)
}

// startedDown returns a controller that passed readiness and shows Down.
func startedDown(t *testing.T, b *fakeBackend, bus *EventBus, opts ...Option) *Controller {
	t.Helper()
	c := newTestController(t, b, bus, Account{ID: "alice@example.org", Domain: "example.org", Authenticated: true}, opts...)
	require.NoError(t, c.Start())
	waitState(t, c, StateDown)
	require.True(t, c.View().Ready)
	return c
}
