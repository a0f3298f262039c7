package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

// scrape returns the text exposition of m.
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Transition(t *testing.T) {
	m := New()
	assert.Contains(t, scrape(t, m), `vpnpanel_vpn_state{state="waiting"} 1`)

	m.Transition(vpn.StateWaiting, vpn.StateDown)
	m.Transition(vpn.StateDown, vpn.StateConnecting)
	m.Transition(vpn.StateConnecting, vpn.StateUp)
	m.Transition(vpn.StateUp, vpn.StateUp)

	out := scrape(t, m)
	assert.Contains(t, out, `vpnpanel_vpn_transitions_total{from="down",to="connecting"} 1`)
	assert.Contains(t, out, `vpnpanel_vpn_transitions_total{from="up",to="up"} 1`)
	assert.Contains(t, out, `vpnpanel_vpn_state{state="up"} 1`)
	assert.Contains(t, out, `vpnpanel_vpn_state{state="waiting"} 0`)
	assert.Contains(t, out, `vpnpanel_vpn_state{state="connecting"} 0`)
}

func TestMetrics_BackendCall(t *testing.T) {
	m := New()

	m.BackendCall("start", nil, 20*time.Millisecond)
	m.BackendCall("start", vpn.NewBackendError("start", common.ErrStart, "port busy"), time.Second)
	m.BackendCall("check", fmt.Errorf("wrapped: %w", common.ErrMissingCertificate), time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, `vpnpanel_backend_calls_total{op="start",result="ok"} 1`)
	assert.Contains(t, out, `vpnpanel_backend_calls_total{op="start",result="start"} 1`)
	assert.Contains(t, out, `vpnpanel_backend_calls_total{op="check",result="missing_certificate"} 1`)
	assert.Contains(t, out, `vpnpanel_backend_call_duration_seconds_count{op="start"} 2`)
}

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{common.ErrNotRunning, "not_running"},
		{vpn.NewBackendError("status", common.ErrUnknownStatus, "warming"), "unknown_status"},
		{common.ErrPolicyAgentMissing, "no_policy_agent"},
		{fmt.Errorf("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, result(tt.err))
		})
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Discarded("status superseded by command")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `vpnpanel_vpn_discarded_total{reason="status superseded by command"} 1`)
	assert.Contains(t, string(body), `vpnpanel_vpn_state{state="waiting"} 1`)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.Transition(vpn.StateDown, vpn.StateUp)
	m.BackendCall("start", nil, time.Second)
	m.Discarded("x")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
