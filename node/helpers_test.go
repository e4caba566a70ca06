package node

import (
	"sync"
	"testing"
	"time"

	"github.com/anycable/ocpp-central/events"
	"github.com/anycable/ocpp-central/handlers"
	"github.com/anycable/ocpp-central/metrics"
	"github.com/anycable/ocpp-central/mocks"
	"github.com/anycable/ocpp-central/ocpp"
	"github.com/anycable/ocpp-central/ws"
	"github.com/stretchr/testify/require"
)

type eventsRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *eventsRecorder) Emit(ev *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *eventsRecorder) Kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]events.Kind, len(r.events))

	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}

	return kinds
}

type testNode struct {
	*Node
	events  *eventsRecorder
	metrics *metrics.Metrics
}

func newTestNode(t *testing.T, configure ...func(*Config)) *testNode {
	config := NewConfig()
	config.CallTimeout = 1
	config.StatsRefreshInterval = 0

	for _, fn := range configure {
		fn(&config)
	}

	ocppConfig := ocpp.NewConfig()
	rec := &eventsRecorder{}

	d := ocpp.NewDispatcher()
	require.NoError(t, handlers.New(&ocppConfig, handlers.WithEmitter(rec)).Register(d))

	m := metrics.NewMetrics(nil, 0)

	n := NewNode(&config, d, WithEmitter(rec), WithInstrumenter(m))
	require.NoError(t, n.Start())

	return &testNode{Node: n, events: rec, metrics: m}
}

func (n *testNode) connect(t *testing.T, path string) (*Session, *mocks.MockConnection) {
	conn := mocks.NewMockConnection()

	s, err := n.HandleConnection(conn, &ws.RequestInfo{UID: path, Path: path})
	require.NoError(t, err)

	require.NoError(t, s.Serve(func() {}))

	return s, conn
}

func readSent(t *testing.T, conn *mocks.MockConnection) string {
	msg, err := conn.ReadSent(time.Second)
	require.NoError(t, err)

	return string(msg)
}

func waitClosed(t *testing.T, conn *mocks.MockConnection) {
	select {
	case <-conn.Closed():
	case <-time.After(time.Second):
		t.Fatal("connection hasn't been closed")
	}
}

func waitState(t *testing.T, s *Session, state SessionState) {
	require.Eventually(t, func() bool { return s.State() == state }, time.Second, 10*time.Millisecond)
}
