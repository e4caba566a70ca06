package node

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/anycable/ocpp-central/events"
	"github.com/anycable/ocpp-central/mocks"
	"github.com/anycable/ocpp-central/ocpp"
	"github.com/anycable/ocpp-central/ws"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeStartFreezesDispatcher(t *testing.T) {
	n := newTestNode(t)

	err := n.dispatcher.Handle("Authorize", func(ctx context.Context, station string, payload json.RawMessage) (interface{}, error) {
		return nil, nil
	})

	assert.True(t, errorx.IsOfType(err, ocpp.RegistrationFailed))
}

func TestHandleConnectionUnidentified(t *testing.T) {
	n := newTestNode(t)
	conn := mocks.NewMockConnection()

	s, err := n.HandleConnection(conn, &ws.RequestInfo{UID: "1", Path: "/CS"})

	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, errorx.IsOfType(err, UnidentifiedStation))

	code, reason := conn.CloseStatus()
	assert.Equal(t, ws.ClosePolicyViolation, code)
	assert.Equal(t, "Unidentified station", reason)

	assert.Equal(t, 0, n.Size())
	assert.Empty(t, n.events.Kinds())
	assert.Equal(t, uint64(1), n.metrics.Counter(metricsRejected).Value())
}

func TestHandleConnectionAnonymous(t *testing.T) {
	n := newTestNode(t, func(c *Config) { c.AllowAnonymous = true })

	s, _ := n.connect(t, "/CS")

	assert.Equal(t, AnonymousStation, s.Station)

	found, ok := n.Lookup(AnonymousStation)
	require.True(t, ok)
	assert.Same(t, s, found)

	s.Disconnect("Test", ws.CloseNormalClosure)
}

func TestHandleConnectionSupersedes(t *testing.T) {
	n := newTestNode(t)

	first, firstConn := n.connect(t, "/CS/station-42")
	second, secondConn := n.connect(t, "/CS/station-42")

	waitClosed(t, firstConn)
	waitState(t, first, StateClosed)

	_, reason := firstConn.CloseStatus()
	assert.Equal(t, "Superseded", reason)

	assert.Equal(t, StateActive, second.State())
	assert.Equal(t, 1, n.Size())

	found, ok := n.Lookup("station-42")
	require.True(t, ok)
	assert.Same(t, second, found)

	// the superseded session doesn't evict the new one and doesn't report disconnect
	first.Disconnect("Again", ws.CloseNormalClosure)
	assert.Equal(t, 1, n.Size())
	assert.Equal(t, []events.Kind{events.ConnectKind, events.ConnectKind}, n.events.Kinds())
	assert.Equal(t, uint64(1), n.metrics.Counter(metricsSuperseded).Value())

	secondConn.Push(`[2,"1","Heartbeat",{}]`)
	assert.Contains(t, readSent(t, secondConn), `[3,"1"`)

	second.Disconnect("Test", ws.CloseNormalClosure)
	assert.Equal(t, 0, n.Size())
}

func TestNodeCallNotConnected(t *testing.T) {
	n := newTestNode(t)

	_, err := n.Call(context.Background(), "ev-missing", "Reset", nil)

	assert.True(t, errorx.IsOfType(err, StationNotConnected))
	assert.True(t, errorx.IsNotFound(err))
}

func TestNodeShutdown(t *testing.T) {
	n := newTestNode(t)

	s1, conn1 := n.connect(t, "/CS/ev1")
	s2, conn2 := n.connect(t, "/CS/ev2")

	require.NoError(t, n.Shutdown(context.Background()))

	for _, conn := range []*mocks.MockConnection{conn1, conn2} {
		code, reason := conn.CloseStatus()
		assert.Equal(t, ws.CloseGoingAway, code)
		assert.Equal(t, "Server restart", reason)
	}

	assert.Equal(t, StateClosed, s1.State())
	assert.Equal(t, StateClosed, s2.State())
	assert.Equal(t, 0, n.Size())

	conn := mocks.NewMockConnection()
	_, err := n.HandleConnection(conn, &ws.RequestInfo{UID: "3", Path: "/CS/ev3"})

	assert.True(t, errorx.IsOfType(err, SessionClosed))

	code, _ := conn.CloseStatus()
	assert.Equal(t, ws.CloseGoingAway, code)

	// second shutdown is no-op
	require.NoError(t, n.Shutdown(context.Background()))
}

func TestNodeStaleSessions(t *testing.T) {
	n := newTestNode(t)

	fresh, _ := n.connect(t, "/CS/fresh")
	stale, staleConn := n.connect(t, "/CS/stale")

	stale.lastActivity.Store(time.Now().Add(-time.Minute).UnixNano())

	w := NewWatchdog(n.registry, 30*time.Second, n.staleDisconnect)

	assert.Equal(t, 1, w.Check(time.Now()))

	_, reason := staleConn.CloseStatus()
	assert.Equal(t, "Stale connection", reason)

	assert.Equal(t, StateActive, fresh.State())
	assert.Equal(t, 1, n.Size())
	assert.Equal(t, uint64(1), n.metrics.Counter(metricsStaleClients).Value())

	fresh.Disconnect("Test", ws.CloseNormalClosure)
}

func TestNodeWatchdogRun(t *testing.T) {
	n := newTestNode(t, func(c *Config) { c.StaleTimeout = 1 })

	s, conn := n.connect(t, "/CS/ev1")
	s.lastActivity.Store(time.Now().Add(-time.Minute).UnixNano())

	waitClosed(t, conn)
	waitState(t, s, StateClosed)

	require.NoError(t, n.Shutdown(context.Background()))
}

func TestNodeCollectStats(t *testing.T) {
	n := newTestNode(t)

	s, _ := n.connect(t, "/CS/ev1")

	n.collectStatsOnce()

	assert.Equal(t, uint64(1), n.metrics.Gauge(metricsClientsNum).Value())
	assert.Equal(t, uint64(0), n.metrics.Gauge(metricsPendingCalls).Value())
	assert.NotZero(t, n.metrics.Gauge(metricsGoroutines).Value())

	s.Disconnect("Test", ws.CloseNormalClosure)
}
