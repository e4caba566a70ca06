package events

import (
	"context"
	"sync"

	"github.com/anycable/ocpp-central/utils"
	"github.com/apex/log"
	"github.com/joomcode/errorx"
	"github.com/nats-io/nats.go"
)

// NATSEmitter publishes events to NATS subjects: <prefix>.<kind>
type NATSEmitter struct {
	config *NATSConfig
	conn   *nats.Conn
	mu     sync.RWMutex
	log    *log.Entry
}

var _ Adapter = (*NATSEmitter)(nil)

func NewNATSEmitter(c *NATSConfig) *NATSEmitter {
	return &NATSEmitter{config: c, log: log.WithField("context", "events").WithField("provider", "nats")}
}

func (*NATSEmitter) ID() string {
	return "nats"
}

func (e *NATSEmitter) Start() error {
	connectOptions := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(e.config.MaxReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				e.log.Warnf("Connection failed: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			e.log.Infof("Connection restored: %s", nc.ConnectedUrl())
		}),
	}

	if e.config.DontRandomizeServers {
		connectOptions = append(connectOptions, nats.DontRandomize())
	}

	nc, err := nats.Connect(e.config.Servers, connectOptions...)

	if err != nil {
		return errorx.Decorate(err, "failed to connect to NATS")
	}

	e.log.Infof("Publishing events to NATS: %s (prefix=%s)", e.config.Servers, e.config.SubjectPrefix)

	e.mu.Lock()
	e.conn = nc
	e.mu.Unlock()

	return nil
}

func (e *NATSEmitter) Emit(ev *Event) {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()

	if conn == nil {
		return
	}

	subject := e.Subject(ev.Kind)

	if err := conn.Publish(subject, utils.ToJSON(ev)); err != nil {
		e.log.Errorf("Failed to publish event to %s: %v", subject, err)
	}
}

func (e *NATSEmitter) Subject(kind Kind) string {
	if e.config.SubjectPrefix == "" {
		return string(kind)
	}

	return e.config.SubjectPrefix + "." + string(kind)
}

func (e *NATSEmitter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Drain()
}
