package node

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anycable/ocpp-central/ocpp"
	"github.com/anycable/ocpp-central/ws"
	"github.com/apex/log"
	"github.com/joomcode/errorx"
)

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}

	return "unknown"
}

// Session represents a connected station
type Session struct {
	node    *Node
	conn    Connection
	encoder ocpp.Encoder
	pending *PendingCalls

	state        atomic.Int32
	lastActivity atomic.Int64

	// Consecutive malformed frames (accessed only by the reader)
	malformed int

	// Serializes writes to the connection
	wmu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	UID     string
	Station string
	Backend string
	Log     *log.Entry
}

// NewSession builds a new Session struct for the station connection
func NewSession(node *Node, conn Connection, station string, backend string, uid string) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	session := &Session{
		node:    node,
		conn:    conn,
		pending: NewPendingCalls(),
		ctx:     ctx,
		cancel:  cancel,
		UID:     uid,
		Station: station,
		Backend: backend,
	}

	session.Log = node.log.WithFields(log.Fields{
		"sid":     uid,
		"station": station,
	})

	session.touch()

	return session
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// LastActivity returns the time of the last inbound frame
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// PendingCalls returns the number of server-initiated calls awaiting responses
func (s *Session) PendingCalls() int {
	return s.pending.Len()
}

// Serve enters a loop to read incoming frames
func (s *Session) Serve(callback func()) error {
	go func() {
		defer callback()

		s.readLoop()
	}()

	return nil
}

func (s *Session) readLoop() {
	for {
		message, err := s.conn.Read()

		if err != nil {
			if s.State() >= StateClosing {
				return
			}

			if ws.IsCloseError(err) {
				s.Log.Debugf("Websocket closed: %v", err)
				s.Disconnect("Read closed", ws.CloseNormalClosure)
			} else {
				s.Log.Debugf("Websocket read failed: %v", err)
				s.Disconnect("Read failed", ws.CloseAbnormalClosure)
			}
			return
		}

		if err := s.ReadMessage(message); err != nil {
			s.Log.Debugf("Frame processing failed: %v", err)
			s.Disconnect("Frame processing failed", ws.CloseInternalServerErr)
			return
		}
	}
}

// ReadMessage processes a single inbound frame.
// Returns error only when the session can no longer process frames.
func (s *Session) ReadMessage(raw []byte) error {
	s.touch()

	s.node.metrics.CounterIncrement(metricsFramesReceived)
	s.node.metrics.CounterAdd(metricsDataReceived, uint64(len(raw)))

	msg, err := s.encoder.Decode(raw)

	if err != nil {
		return s.handleMalformed(raw, err)
	}

	s.malformed = 0

	switch m := msg.(type) {
	case *ocpp.Call:
		return s.handleCall(m)
	case *ocpp.CallResult, *ocpp.CallError:
		s.correlate(msg)
	}

	return nil
}

func (s *Session) handleMalformed(raw []byte, err error) error {
	s.malformed++
	s.node.metrics.CounterIncrement(metricsMalformedFrames)

	s.Log.Warnf("Malformed frame dropped: %v (%q)", err, raw)

	threshold := s.node.config.MaxMalformedFrames

	if threshold > 0 && s.malformed >= threshold {
		s.Log.Warnf("Too many malformed frames: %d", s.malformed)
		s.Disconnect("Too many malformed frames", ws.CloseProtocolError)
		return SessionClosed.Wrap(err, "too many malformed frames")
	}

	return nil
}

func (s *Session) handleCall(call *ocpp.Call) error {
	s.node.metrics.CounterIncrement(metricsCallsReceived)

	s.Log.Debugf("Incoming call: %s %s", call.Action, call.UniqueID)

	reply := s.node.dispatcher.Dispatch(s.ctx, s.Station, call)

	if cerr, ok := reply.(*ocpp.CallError); ok {
		s.node.metrics.CounterIncrement(metricsCallErrors)
		s.Log.Debugf("Call %s %s failed: %s %s", call.Action, call.UniqueID, cerr.ErrorCode, cerr.ErrorDescription)
	}

	return s.send(reply)
}

func (s *Session) correlate(msg ocpp.Message) {
	if s.pending.Resolve(msg.ID(), msg) {
		return
	}

	s.node.metrics.CounterIncrement(metricsCorrelationMisses)
	s.Log.Debugf("No pending call for response %s, dropped", msg.ID())
}

// Call sends a server-initiated call to the station and waits for the response
// (CallResult or CallError). The call expires after the configured call timeout
// unless ctx is done earlier.
// Must not be called from a handler of the same session: responses are read by the session's reader.
func (s *Session) Call(ctx context.Context, action string, payload interface{}) (ocpp.Message, error) {
	if s.State() != StateActive {
		return nil, SessionClosed.New("session is not active: %s", s.State())
	}

	data, err := encodePayload(payload)

	if err != nil {
		return nil, errorx.Decorate(err, "failed to encode %s payload", action)
	}

	waiter, err := s.pending.Register(s.node.callTimeout())

	if err != nil {
		return nil, err
	}

	s.node.metrics.CounterIncrement(metricsServerCalls)

	if err := s.send(&ocpp.Call{UniqueID: waiter.ID(), Action: action, Payload: data}); err != nil {
		s.pending.Fail(waiter.ID(), err)
	}

	res, err := waiter.Wait(ctx)

	if errorx.IsOfType(err, CallTimeout) {
		s.node.metrics.CounterIncrement(metricsServerCallTimeouts)
		s.Log.Debugf("Call %s %s timed out", action, waiter.ID())
	}

	return res, err
}

// Disconnect closes the session: cancels pending calls, closes the connection
// and removes the session from the registry (if it's still registered).
// Subsequent calls have no effect.
func (s *Session) Disconnect(reason string, code int) {
	for {
		state := s.State()

		if state >= StateClosing {
			return
		}

		if s.state.CompareAndSwap(int32(state), int32(StateClosing)) {
			break
		}
	}

	s.Log.Debugf("Disconnecting: %s", reason)

	s.cancel()

	if n := s.pending.CancelAll(); n > 0 {
		s.Log.Debugf("Cancelled pending calls: %d", n)
	}

	s.conn.Close(code, reason)

	s.node.disconnected(s, reason)

	s.state.Store(int32(StateClosed))
}

func (s *Session) activate() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
}

func (s *Session) send(msg ocpp.Message) error {
	data, err := s.encoder.Encode(msg)

	if err != nil {
		s.Log.Errorf("Failed to encode message %s: %v", msg.ID(), err)
		return err
	}

	return s.write(data)
}

func (s *Session) write(data []byte) error {
	s.wmu.Lock()

	if s.State() >= StateClosing {
		s.wmu.Unlock()
		return SessionClosed.New("session is closed")
	}

	err := s.conn.Write(data, time.Now().Add(s.node.writeTimeout()))

	s.wmu.Unlock()

	if err != nil {
		s.node.metrics.CounterIncrement(metricsFailedWrites)
		s.Log.Debugf("Write failed: %v", err)
		s.Disconnect("Write failed", ws.CloseAbnormalClosure)
		return err
	}

	s.node.metrics.CounterAdd(metricsDataSent, uint64(len(data)))

	return nil
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	switch val := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return val, nil
	}

	return json.Marshal(payload)
}
