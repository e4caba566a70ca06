package node

import (
	"sync"
	"time"

	"github.com/apex/log"
)

// Watchdog periodically checks sessions activity and
// invokes the callback for sessions without inbound frames for longer than timeout
type Watchdog struct {
	registry *Registry
	timeout  time.Duration
	interval time.Duration
	onStale  func(s *Session)

	shutdownCh chan struct{}
	once       sync.Once
	log        *log.Entry
}

func NewWatchdog(registry *Registry, timeout time.Duration, onStale func(s *Session)) *Watchdog {
	interval := timeout / 2

	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}

	return &Watchdog{
		registry:   registry,
		timeout:    timeout,
		interval:   interval,
		onStale:    onStale,
		shutdownCh: make(chan struct{}),
		log:        log.WithField("context", "watchdog"),
	}
}

func (w *Watchdog) Run() {
	w.log.Debugf("Checking stale sessions every %v (timeout: %v)", w.interval, w.timeout)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdownCh:
			return
		case now := <-ticker.C:
			w.Check(now)
		}
	}
}

// Check invokes the callback for every stale session and returns their number
func (w *Watchdog) Check(now time.Time) int {
	stale := 0

	w.registry.Each(func(s *Session) {
		if s.State() != StateActive {
			return
		}

		if now.Sub(s.LastActivity()) > w.timeout {
			stale++
			w.onStale(s)
		}
	})

	return stale
}

func (w *Watchdog) Shutdown() {
	w.once.Do(func() { close(w.shutdownCh) })
}
