package node

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/anycable/ocpp-central/events"
	"github.com/anycable/ocpp-central/mocks"
	"github.com/anycable/ocpp-central/ocpp"
	"github.com/anycable/ocpp-central/ws"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var isoTime = `"\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z"`

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
}

func TestSessionCalls(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n := newTestNode(t)
	s, conn := n.connect(t, "/CS/station-42")

	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, "station-42", s.Station)
	assert.Equal(t, "CS", s.Backend)

	t.Run("BootNotification", func(t *testing.T) {
		conn.Push(`[2,"1","BootNotification",{"chargePointVendor":"Acme","chargePointModel":"X1"}]`)

		assert.Regexp(t, regexp.MustCompile(`^\[3,"1",\{"currentTime":`+isoTime+`,"interval":30,"status":"Accepted"\}\]$`), readSent(t, conn))
	})

	t.Run("Heartbeat", func(t *testing.T) {
		conn.Push(`[2,"2","Heartbeat",{}]`)

		assert.Regexp(t, regexp.MustCompile(`^\[3,"2",\{"currentTime":`+isoTime+`\}\]$`), readSent(t, conn))
	})

	t.Run("StatusNotification", func(t *testing.T) {
		conn.Push(`[2,"3","StatusNotification",{"connectorId":1,"errorCode":"NoError","status":"Available"}]`)

		assert.Equal(t, `[3,"3",{}]`, readSent(t, conn))
	})

	t.Run("Unknown action", func(t *testing.T) {
		conn.Push(`[2,"4","FooBarAction",{}]`)

		assert.Equal(t, `[4,"4","NotImplemented","no handler for action FooBarAction",{}]`, readSent(t, conn))
	})

	t.Run("Invalid payload", func(t *testing.T) {
		conn.Push(`[2,"5","StatusNotification",{"connectorId":"one","errorCode":"NoError","status":"Available"}]`)

		reply := readSent(t, conn)
		assert.Contains(t, reply, `[4,"5","TypeConstraintViolation"`)
		assert.Equal(t, StateActive, s.State())
	})

	assert.Equal(t, []events.Kind{events.ConnectKind, events.BootKind, events.HeartbeatKind, events.StatusKind}, n.events.Kinds())
	assert.Equal(t, uint64(5), n.metrics.Counter(metricsCallsReceived).Value())
	assert.Equal(t, uint64(2), n.metrics.Counter(metricsCallErrors).Value())

	conn.CloseFromClient()
	waitClosed(t, conn)
	waitState(t, s, StateClosed)

	code, reason := conn.CloseStatus()
	assert.Equal(t, ws.CloseNormalClosure, code)
	assert.Equal(t, "Read closed", reason)

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, n.Size())
	assert.Equal(t, events.DisconnectKind, n.events.Kinds()[4])
}

func TestSessionHandlerFailure(t *testing.T) {
	config := NewConfig()
	d := ocpp.NewDispatcher()

	require.NoError(t, d.Handle("Authorize", func(ctx context.Context, station string, payload json.RawMessage) (interface{}, error) {
		return nil, errors.New("database is down")
	}))

	n := NewNode(&config, d)
	require.NoError(t, n.Start())

	conn := mocks.NewMockConnection()
	s, err := n.HandleConnection(conn, &ws.RequestInfo{UID: "1", Path: "/CS/ev1"})
	require.NoError(t, err)
	require.NoError(t, s.Serve(func() {}))

	conn.Push(`[2,"1","Authorize",{"idTag":"x"}]`)
	assert.Equal(t, `[4,"1","InternalError","Internal error",{}]`, readSent(t, conn))

	// the session is still usable
	conn.Push(`[2,"2","Authorize",{"idTag":"x"}]`)
	assert.Equal(t, `[4,"2","InternalError","Internal error",{}]`, readSent(t, conn))

	assert.Equal(t, StateActive, s.State())

	s.Disconnect("Test", ws.CloseNormalClosure)
	require.NoError(t, n.Shutdown(context.Background()))
}

func TestSessionInvalidHandlerResult(t *testing.T) {
	type confirmation struct {
		Status string `json:"status"`
	}

	config := NewConfig()
	d := ocpp.NewDispatcher()

	require.NoError(t, d.Handle("DataTransfer", func(ctx context.Context, station string, payload json.RawMessage) (interface{}, error) {
		return json.RawMessage("not json"), nil
	}))

	require.NoError(t, d.Handle("Authorize", func(ctx context.Context, station string, payload json.RawMessage) (interface{}, error) {
		return (*confirmation)(nil), nil
	}))

	require.NoError(t, d.Handle("Heartbeat", func(ctx context.Context, station string, payload json.RawMessage) (interface{}, error) {
		return &confirmation{Status: "Accepted"}, nil
	}))

	n := NewNode(&config, d)
	require.NoError(t, n.Start())

	conn := mocks.NewMockConnection()
	s, err := n.HandleConnection(conn, &ws.RequestInfo{UID: "1", Path: "/CS/ev1"})
	require.NoError(t, err)
	require.NoError(t, s.Serve(func() {}))

	conn.Push(`[2,"1","DataTransfer",{"vendorId":"acme"}]`)
	assert.Equal(t, `[4,"1","InternalError","Internal error",{}]`, readSent(t, conn))

	conn.Push(`[2,"2","Authorize",{"idTag":"x"}]`)
	assert.Equal(t, `[4,"2","InternalError","Internal error",{}]`, readSent(t, conn))

	conn.Push(`[2,"3","Heartbeat",{}]`)
	assert.Equal(t, `[3,"3",{"status":"Accepted"}]`, readSent(t, conn))

	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, 1, n.Size())

	s.Disconnect("Test", ws.CloseNormalClosure)
	require.NoError(t, n.Shutdown(context.Background()))
}

func TestSessionMalformedFrames(t *testing.T) {
	n := newTestNode(t)
	s, conn := n.connect(t, "/CS/ev1")

	conn.Push(`not a json`)
	conn.Push(`[5,"1",{}]`)

	// well-formed frame resets the counter
	conn.Push(`[2,"1","Heartbeat",{}]`)
	assert.Contains(t, readSent(t, conn), `[3,"1"`)
	assert.Equal(t, StateActive, s.State())

	conn.Push(`[]`)
	conn.Push(`{}`)
	conn.Push(`[2,"",""]`)

	waitClosed(t, conn)
	waitState(t, s, StateClosed)

	code, reason := conn.CloseStatus()
	assert.Equal(t, ws.CloseProtocolError, code)
	assert.Equal(t, "Too many malformed frames", reason)

	assert.Equal(t, uint64(5), n.metrics.Counter(metricsMalformedFrames).Value())
	assert.Equal(t, 0, n.Size())
}

func TestSessionMalformedFramesUnlimited(t *testing.T) {
	n := newTestNode(t, func(c *Config) { c.MaxMalformedFrames = 0 })
	s, conn := n.connect(t, "/CS/ev1")

	for i := 0; i < 10; i++ {
		conn.Push(`[`)
	}

	conn.Push(`[2,"1","Heartbeat",{}]`)
	assert.Contains(t, readSent(t, conn), `[3,"1"`)
	assert.Equal(t, StateActive, s.State())

	s.Disconnect("Test", ws.CloseNormalClosure)
}

func TestSessionServerCall(t *testing.T) {
	n := newTestNode(t)
	s, conn := n.connect(t, "/CS/ev1")

	type result struct {
		msg ocpp.Message
		err error
	}

	results := make(chan result, 1)

	go func() {
		msg, err := n.Call(context.Background(), "ev1", "Reset", map[string]string{"type": "Soft"})
		results <- result{msg, err}
	}()

	var sent []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(readSent(t, conn)), &sent))
	require.Len(t, sent, 4)

	var id string
	require.NoError(t, json.Unmarshal(sent[1], &id))

	assert.Equal(t, `2`, string(sent[0]))
	assert.Equal(t, `"Reset"`, string(sent[2]))
	assert.Equal(t, `{"type":"Soft"}`, string(sent[3]))
	assert.Equal(t, 1, s.PendingCalls())

	conn.Push(`[3,"` + id + `",{"status":"Accepted"}]`)

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, &ocpp.CallResult{UniqueID: id, Payload: json.RawMessage(`{"status":"Accepted"}`)}, res.msg)

	// duplicate response is dropped
	conn.Push(`[3,"` + id + `",{"status":"Accepted"}]`)
	conn.Push(`[4,"unknown","InternalError","",{}]`)
	conn.Push(`[2,"x","Heartbeat",{}]`)
	assert.Contains(t, readSent(t, conn), `[3,"x"`)

	assert.Equal(t, uint64(2), n.metrics.Counter(metricsCorrelationMisses).Value())

	s.Disconnect("Test", ws.CloseNormalClosure)
}

func TestSessionServerCallError(t *testing.T) {
	n := newTestNode(t)
	s, conn := n.connect(t, "/CS/ev1")

	results := make(chan ocpp.Message, 1)

	go func() {
		msg, _ := s.Call(context.Background(), "UnlockConnector", json.RawMessage(`{"connectorId":1}`))
		results <- msg
	}()

	var sent []interface{}
	require.NoError(t, json.Unmarshal([]byte(readSent(t, conn)), &sent))

	conn.Push(`[4,"` + sent[1].(string) + `","NotSupported","no connectors",{}]`)

	msg := <-results
	require.IsType(t, &ocpp.CallError{}, msg)
	assert.Equal(t, "NotSupported", msg.(*ocpp.CallError).ErrorCode)

	s.Disconnect("Test", ws.CloseNormalClosure)
}

func TestSessionServerCallInvalidPayload(t *testing.T) {
	n := newTestNode(t)
	s, conn := n.connect(t, "/CS/ev1")

	_, err := s.Call(context.Background(), "DataTransfer", json.RawMessage("not json"))
	require.Error(t, err)

	_, err = s.Call(context.Background(), "DataTransfer", []int{1, 2})
	require.Error(t, err)

	assert.Equal(t, 0, s.PendingCalls())
	assert.Equal(t, StateActive, s.State())

	conn.Push(`[2,"1","Heartbeat",{}]`)
	assert.Contains(t, readSent(t, conn), `[3,"1"`)

	s.Disconnect("Test", ws.CloseNormalClosure)
}

func TestSessionServerCallTimeout(t *testing.T) {
	n := newTestNode(t)
	s, conn := n.connect(t, "/CS/ev1")

	start := time.Now()
	_, err := s.Call(context.Background(), "Reset", nil)

	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, CallTimeout))
	assert.GreaterOrEqual(t, time.Since(start), time.Second)

	assert.Equal(t, `[2,`, readSent(t, conn)[:3])
	assert.Equal(t, 0, s.PendingCalls())
	assert.Equal(t, uint64(1), n.metrics.Counter(metricsServerCallTimeouts).Value())

	s.Disconnect("Test", ws.CloseNormalClosure)
}

func TestSessionDisconnectCancelsPendingCalls(t *testing.T) {
	n := newTestNode(t, func(c *Config) { c.CallTimeout = 60 })
	s, conn := n.connect(t, "/CS/ev1")

	errs := make(chan error, 1)

	go func() {
		_, err := s.Call(context.Background(), "Reset", nil)
		errs <- err
	}()

	readSent(t, conn)

	s.Disconnect("Test", ws.CloseNormalClosure)
	s.Disconnect("Again", ws.CloseAbnormalClosure)

	select {
	case err := <-errs:
		assert.True(t, errorx.IsOfType(err, CallCancelled))
	case <-time.After(time.Second):
		t.Fatal("pending call hasn't been cancelled")
	}

	_, reason := conn.CloseStatus()
	assert.Equal(t, "Test", reason)

	_, err := s.Call(context.Background(), "Reset", nil)
	assert.True(t, errorx.IsOfType(err, SessionClosed))
}

func TestSessionWriteFailure(t *testing.T) {
	n := newTestNode(t)
	s, conn := n.connect(t, "/CS/ev1")

	conn.FailWrites(errors.New("broken pipe"))
	conn.Push(`[2,"1","Heartbeat",{}]`)

	waitClosed(t, conn)
	waitState(t, s, StateClosed)

	code, reason := conn.CloseStatus()
	assert.Equal(t, ws.CloseAbnormalClosure, code)
	assert.Equal(t, "Write failed", reason)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, n.Size())
}

func TestSessionLastActivity(t *testing.T) {
	n := newTestNode(t)
	s, conn := n.connect(t, "/CS/ev1")

	before := s.LastActivity()

	time.Sleep(10 * time.Millisecond)

	conn.Push(`[2,"1","Heartbeat",{}]`)
	readSent(t, conn)

	assert.True(t, s.LastActivity().After(before))

	s.Disconnect("Test", ws.CloseNormalClosure)
}
