package node

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/anycable/ocpp-central/events"
	"github.com/anycable/ocpp-central/metrics"
	"github.com/anycable/ocpp-central/ocpp"
	"github.com/anycable/ocpp-central/ws"
	"github.com/apex/log"
)

const (
	metricsGoroutines     = "goroutines_num"
	metricsClientsNum     = "clients_num"
	metricsPendingCalls   = "pending_calls_num"
	metricsConnected      = "clients_connected_count"
	metricsRejected       = "clients_rejected_count"
	metricsSuperseded     = "clients_superseded_count"
	metricsStaleClients   = "clients_stale_count"
	metricsFramesReceived = "frames_received_count"
	metricsDataReceived   = "data_rcvd_total"
	metricsDataSent       = "data_sent_total"

	metricsMalformedFrames   = "malformed_frames_count"
	metricsCallsReceived     = "calls_received_count"
	metricsCallErrors        = "call_errors_count"
	metricsCorrelationMisses = "correlation_misses_count"

	metricsServerCalls        = "server_calls_count"
	metricsServerCallTimeouts = "server_call_timeouts_count"
	metricsFailedWrites       = "failed_writes_count"
)

type Option func(*Node)

// WithEmitter sets the station events emitter
func WithEmitter(e events.Emitter) Option {
	return func(n *Node) {
		n.emitter = e
	}
}

// WithInstrumenter sets the metrics collector
func WithInstrumenter(i metrics.Instrumenter) Option {
	return func(n *Node) {
		n.metrics = i
	}
}

// Node accepts station connections and manages their sessions
type Node struct {
	config     *Config
	dispatcher *ocpp.Dispatcher
	registry   *Registry
	emitter    events.Emitter
	metrics    metrics.Instrumenter
	watchdog   *Watchdog

	shutdownCh chan struct{}
	closing    bool
	mu         sync.RWMutex
	log        *log.Entry
}

// NewNode builds new node struct
func NewNode(config *Config, dispatcher *ocpp.Dispatcher, opts ...Option) *Node {
	n := &Node{
		config:     config,
		dispatcher: dispatcher,
		registry:   NewRegistry(),
		emitter:    events.NoopEmitter{},
		metrics:    metrics.NoopMetrics{},
		shutdownCh: make(chan struct{}),
		log:        log.WithField("context", "node"),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Start freezes the handlers table and starts background jobs
func (n *Node) Start() error {
	n.dispatcher.Freeze()

	n.registerMetrics()

	if n.config.StaleTimeout > 0 {
		n.watchdog = NewWatchdog(n.registry, time.Duration(n.config.StaleTimeout)*time.Second, n.staleDisconnect)
		go n.watchdog.Run()
	}

	if n.config.StatsRefreshInterval > 0 {
		go n.collectStats()
	}

	n.log.Debugf("Registered actions: %v", n.dispatcher.Actions())

	return nil
}

// HandleConnection identifies the station by the request path, builds a session for it
// and registers it (closing the previous station session if any).
// The returned session is active and must be served by the caller.
func (n *Node) HandleConnection(conn Connection, info *ws.RequestInfo) (*Session, error) {
	backend, station, err := ParseStationPath(info.Path, n.config.AllowAnonymous)

	if err != nil {
		n.metrics.CounterIncrement(metricsRejected)
		n.log.WithField("sid", info.UID).Warnf("Connection rejected: %v", err)
		conn.Close(ws.ClosePolicyViolation, "Unidentified station")
		return nil, err
	}

	if n.isClosing() {
		conn.Close(ws.CloseGoingAway, "Server restart")
		return nil, SessionClosed.New("server is shutting down")
	}

	s := NewSession(n, conn, station, backend, info.UID)
	s.activate()

	prev := n.registry.Put(station, s)

	if prev != nil {
		n.metrics.CounterIncrement(metricsSuperseded)
		prev.Log.Infof("Superseded by a new connection %s", s.UID)
		prev.Disconnect("Superseded", ws.CloseNormalClosure)
	}

	n.metrics.CounterIncrement(metricsConnected)

	s.Log.WithFields(log.Fields{"backend": backend, "remote_addr": info.RemoteAddr}).Infof("Station connected")

	n.emitter.Emit(events.NewEvent(events.ConnectKind, station, map[string]interface{}{
		"backend": backend,
		"sid":     s.UID,
	}))

	// Shutdown could have started before the session was registered
	if n.isClosing() {
		s.Disconnect("Server restart", ws.CloseGoingAway)
		return nil, SessionClosed.New("server is shutting down")
	}

	return s, nil
}

// Lookup returns the active session for the station
func (n *Node) Lookup(station string) (*Session, bool) {
	return n.registry.Get(station)
}

// Size returns the number of connected stations
func (n *Node) Size() int {
	return n.registry.Size()
}

// Call performs a server-initiated call to the connected station
func (n *Node) Call(ctx context.Context, station string, action string, payload interface{}) (ocpp.Message, error) {
	s, ok := n.registry.Get(station)

	if !ok {
		return nil, StationNotConnected.New("station is not connected: %s", station)
	}

	return s.Call(ctx, action, payload)
}

// Shutdown stops background jobs and disconnects all the sessions
func (n *Node) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if n.closing {
		n.mu.Unlock()
		return nil
	}
	n.closing = true
	close(n.shutdownCh)
	n.mu.Unlock()

	n.log.Infof("Shutting down...")

	if n.watchdog != nil {
		n.watchdog.Shutdown()
	}

	active := n.registry.Size()

	if active > 0 {
		n.log.Infof("Closing active connections: %d", active)
	}

	done := make(chan struct{})

	go func() {
		n.registry.Each(func(s *Session) {
			s.Disconnect("Server restart", ws.CloseGoingAway)
		})
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) disconnected(s *Session, reason string) {
	if !n.registry.Remove(s.Station, s) {
		s.Log.Debugf("Session is not registered, skip disconnect event")
		return
	}

	s.Log.WithField("reason", reason).Infof("Station disconnected")

	n.emitter.Emit(events.NewEvent(events.DisconnectKind, s.Station, map[string]interface{}{
		"backend": s.Backend,
		"sid":     s.UID,
		"reason":  reason,
	}))
}

func (n *Node) staleDisconnect(s *Session) {
	n.metrics.CounterIncrement(metricsStaleClients)
	s.Log.Infof("No activity since %s", s.LastActivity().Format(time.RFC3339))
	s.Disconnect("Stale connection", ws.CloseGoingAway)
}

func (n *Node) isClosing() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.closing
}

func (n *Node) callTimeout() time.Duration {
	return time.Duration(n.config.CallTimeout) * time.Second
}

func (n *Node) writeTimeout() time.Duration {
	return time.Duration(n.config.WriteTimeout) * time.Second
}

func (n *Node) collectStats() {
	ticker := time.NewTicker(time.Duration(n.config.StatsRefreshInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.shutdownCh:
			return
		case <-ticker.C:
			n.collectStatsOnce()
		}
	}
}

func (n *Node) collectStatsOnce() {
	pending := 0

	n.registry.Each(func(s *Session) {
		pending += s.PendingCalls()
	})

	n.metrics.GaugeSet(metricsGoroutines, uint64(runtime.NumGoroutine()))
	n.metrics.GaugeSet(metricsClientsNum, uint64(n.registry.Size()))
	n.metrics.GaugeSet(metricsPendingCalls, uint64(pending))
}

func (n *Node) registerMetrics() {
	n.metrics.RegisterGauge(metricsGoroutines, "The number of Go routines")
	n.metrics.RegisterGauge(metricsClientsNum, "The number of connected stations")
	n.metrics.RegisterGauge(metricsPendingCalls, "The number of server-initiated calls awaiting responses")

	n.metrics.RegisterCounter(metricsConnected, "The total number of accepted station connections")
	n.metrics.RegisterCounter(metricsRejected, "The total number of connections rejected due to missing station identifier")
	n.metrics.RegisterCounter(metricsSuperseded, "The total number of sessions closed due to the station reconnecting")
	n.metrics.RegisterCounter(metricsStaleClients, "The total number of sessions closed due to inactivity")
	n.metrics.RegisterCounter(metricsFramesReceived, "The total number of frames received from stations")
	n.metrics.RegisterCounter(metricsDataReceived, "The total amount of bytes received from stations")
	n.metrics.RegisterCounter(metricsDataSent, "The total amount of bytes sent to stations")
	n.metrics.RegisterCounter(metricsMalformedFrames, "The total number of frames which are not valid OCPP-J messages")
	n.metrics.RegisterCounter(metricsCallsReceived, "The total number of calls received from stations")
	n.metrics.RegisterCounter(metricsCallErrors, "The total number of calls replied with errors")
	n.metrics.RegisterCounter(metricsCorrelationMisses, "The total number of responses without matching pending calls")
	n.metrics.RegisterCounter(metricsServerCalls, "The total number of server-initiated calls")
	n.metrics.RegisterCounter(metricsServerCallTimeouts, "The total number of server-initiated calls timed out")
	n.metrics.RegisterCounter(metricsFailedWrites, "The total number of failed writes")
}
