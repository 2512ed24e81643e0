package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fgeck/hldswatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveProbe(t *testing.T) {
	m := New()

	m.ObserveProbe("10.0.0.1:27015", &models.ProbeResult{Alive: true, Attempts: 1, Duration: 20 * time.Millisecond})
	m.ObserveProbe("10.0.0.1:27015", &models.ProbeResult{Alive: false, Attempts: 3, Duration: 24 * time.Second})
	m.ObserveProbe("10.0.0.1:27015", &models.ProbeResult{Alive: false, Attempts: 3, Duration: 24 * time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("10.0.0.1:27015", "alive")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.probes.WithLabelValues("10.0.0.1:27015", "down")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.up.WithLabelValues("10.0.0.1:27015")))
}

func TestObserveRestartAndState(t *testing.T) {
	m := New()

	m.ObserveRestart("10.0.0.1:27015", true)
	m.ObserveRestart("10.0.0.1:27015", false)
	m.ObserveState("10.0.0.1:27015", models.StateRecovered)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.restarts.WithLabelValues("10.0.0.1:27015", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restarts.WithLabelValues("10.0.0.1:27015", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("10.0.0.1:27015", "recovered")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveState("10.0.0.1:27015", models.StateAlive)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hldswatch_target_state_total{state="alive",target="10.0.0.1:27015"} 1`)
}

func TestServe_StopsOnCancel(t *testing.T) {
	// Reserve a free port for the listener.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Serve(ctx, addr, zerolog.New(io.Discard))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
