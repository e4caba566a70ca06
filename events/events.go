// Package events delivers station lifecycle events (connect, boot, status changes, etc.)
// to external observability systems.
package events

import (
	"context"
	"time"
)

type Kind string

const (
	ConnectKind    Kind = "connect"
	DisconnectKind Kind = "disconnect"
	BootKind       Kind = "boot"
	HeartbeatKind  Kind = "heartbeat"
	StatusKind     Kind = "status"
)

// Event represents a single station lifecycle event
type Event struct {
	Kind    Kind                   `json:"kind"`
	Station string                 `json:"station"`
	Time    time.Time              `json:"time"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func NewEvent(kind Kind, station string, data map[string]interface{}) *Event {
	return &Event{Kind: kind, Station: station, Time: time.Now().UTC(), Data: data}
}

// Emitter accepts events. Emit must not block the caller on network I/O.
type Emitter interface {
	Emit(ev *Event)
}

// Adapter is an emitter with a lifecycle
type Adapter interface {
	Emitter
	ID() string
	Start() error
	Shutdown(ctx context.Context) error
}

// Multi fans out events to all the adapters
type Multi struct {
	adapters []Adapter
}

var _ Adapter = (*Multi)(nil)

func NewMulti(adapters ...Adapter) *Multi {
	return &Multi{adapters: adapters}
}

func (m *Multi) ID() string {
	return "multi"
}

func (m *Multi) Emit(ev *Event) {
	for _, a := range m.adapters {
		a.Emit(ev)
	}
}

func (m *Multi) Start() error {
	for _, a := range m.adapters {
		if err := a.Start(); err != nil {
			return err
		}
	}

	return nil
}

func (m *Multi) Shutdown(ctx context.Context) error {
	var firstErr error

	for _, a := range m.adapters {
		if err := a.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Adapters returns IDs of the underlying adapters
func (m *Multi) Adapters() []string {
	ids := make([]string, len(m.adapters))

	for i, a := range m.adapters {
		ids[i] = a.ID()
	}

	return ids
}

type NoopEmitter struct{}

func (NoopEmitter) Emit(*Event) {}
