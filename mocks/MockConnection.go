package mocks

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MockConnection is an in-memory station connection.
// Frames pushed via Push are returned by Read; frames written by the server are available via ReadSent.
type MockConnection struct {
	incoming chan []byte
	sent     chan []byte
	closed   chan struct{}

	mu          sync.Mutex
	closeCode   int
	closeReason string
	writeErr    error
}

func NewMockConnection() *MockConnection {
	return &MockConnection{
		incoming: make(chan []byte, 16),
		sent:     make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

// Push emulates a frame sent by the station
func (conn *MockConnection) Push(msg string) {
	conn.incoming <- []byte(msg)
}

// FailWrites makes all subsequent writes fail with the error
func (conn *MockConnection) FailWrites(err error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	conn.writeErr = err
}

func (conn *MockConnection) Write(msg []byte, deadline time.Time) error {
	conn.mu.Lock()
	err := conn.writeErr
	conn.mu.Unlock()

	if err != nil {
		return err
	}

	select {
	case conn.sent <- msg:
		return nil
	case <-conn.closed:
		return errors.New("connection is closed")
	}
}

func (conn *MockConnection) Read() ([]byte, error) {
	select {
	case msg, ok := <-conn.incoming:
		if !ok {
			return nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return msg, nil
	case <-conn.closed:
		return nil, errors.New("connection is closed")
	}
}

// ReadSent returns the next frame written by the server
func (conn *MockConnection) ReadSent(timeout time.Duration) ([]byte, error) {
	select {
	case msg := <-conn.sent:
		return msg, nil
	case <-time.After(timeout):
		return nil, errors.New("connection hasn't received any messages")
	}
}

// CloseFromClient emulates the station closing the connection
func (conn *MockConnection) CloseFromClient() {
	close(conn.incoming)
}

func (conn *MockConnection) Close(code int, reason string) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	select {
	case <-conn.closed:
		return
	default:
	}

	conn.closeCode = code
	conn.closeReason = reason
	close(conn.closed)
}

// Closed returns a channel which is closed when the server closes the connection
func (conn *MockConnection) Closed() <-chan struct{} {
	return conn.closed
}

// CloseStatus returns the close code and reason sent by the server
func (conn *MockConnection) CloseStatus() (int, string) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	return conn.closeCode, conn.closeReason
}
