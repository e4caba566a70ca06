package events

import (
	"context"
	"sync"
	"time"

	"github.com/anycable/ocpp-central/utils"
	"github.com/apex/log"
	"github.com/joomcode/errorx"
	"github.com/redis/go-redis/v9"
)

const redisPublishTimeout = 5 * time.Second

// RedisEmitter publishes events to a Redis Pub/Sub channel.
// Events are buffered and published from a separate goroutine;
// when the buffer is full new events are dropped.
type RedisEmitter struct {
	config *RedisConfig
	client *redis.Client
	queue  chan *Event
	done   chan struct{}
	closed bool
	mu     sync.RWMutex
	log    *log.Entry
}

var _ Adapter = (*RedisEmitter)(nil)

func NewRedisEmitter(c *RedisConfig) *RedisEmitter {
	size := c.BufferSize

	if size <= 0 {
		size = 1024
	}

	return &RedisEmitter{
		config: c,
		queue:  make(chan *Event, size),
		done:   make(chan struct{}),
		log:    log.WithField("context", "events").WithField("provider", "redis"),
	}
}

func (*RedisEmitter) ID() string {
	return "redis"
}

func (e *RedisEmitter) Start() error {
	opts, err := redis.ParseURL(e.config.URL)

	if err != nil {
		return errorx.Decorate(err, "failed to parse Redis URL")
	}

	e.client = redis.NewClient(opts)

	e.log.Infof("Publishing events to Redis: %s (channel=%s)", opts.Addr, e.config.Channel)

	go e.publishLoop()

	return nil
}

func (e *RedisEmitter) Emit(ev *Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return
	}

	select {
	case e.queue <- ev:
	default:
		e.log.Warnf("Events buffer is full, dropping %s event for %s", ev.Kind, ev.Station)
	}
}

func (e *RedisEmitter) publishLoop() {
	defer close(e.done)

	for ev := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
		err := e.client.Publish(ctx, e.config.Channel, utils.ToJSON(ev)).Err()
		cancel()

		if err != nil {
			e.log.Errorf("Failed to publish event: %v", err)
		}
	}
}

// Shutdown flushes buffered events and closes the client
func (e *RedisEmitter) Shutdown(ctx context.Context) error {
	if e.client == nil {
		return nil
	}

	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
	case <-ctx.Done():
		e.log.Warn("Events buffer hasn't been flushed before shutdown")
	}

	return e.client.Close()
}
