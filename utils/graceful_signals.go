package utils

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/apex/log"
)

type signalHandler func(ctx context.Context) error

// GracefulSignals runs registered shutdown handlers on SIGINT/SIGTERM.
// Handlers are called in the registration order with a context limited by the shutdown timeout;
// the second signal cancels the context and triggers force termination.
type GracefulSignals struct {
	handlers              []signalHandler
	forceTerminateHandler func()
	timeout               time.Duration
	executed              bool
	done                  chan struct{}

	ch  chan os.Signal
	mu  sync.Mutex
	log *log.Entry
}

func NewGracefulSignals(timeout time.Duration) *GracefulSignals {
	return &GracefulSignals{
		timeout:               timeout,
		forceTerminateHandler: func() { os.Exit(1) },
		handlers:              make([]signalHandler, 0),
		done:                  make(chan struct{}),
		ch:                    make(chan os.Signal, 1),
		log:                   log.WithField("context", "signals"),
	}
}

func (s *GracefulSignals) Handle(handler signalHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, handler)
}

func (s *GracefulSignals) HandleForceTerminate(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forceTerminateHandler = handler
}

func (s *GracefulSignals) Listen() {
	signal.Notify(s.ch, syscall.SIGINT, syscall.SIGTERM)
	go s.listen()
}

// Done is closed when all the handlers have been executed
func (s *GracefulSignals) Done() <-chan struct{} {
	return s.done
}

// Shutdown runs the handlers as if a signal has been received
func (s *GracefulSignals) Shutdown() {
	s.exec(make(chan os.Signal))
}

func (s *GracefulSignals) listen() {
	for sig := range s.ch {
		s.log.Infof("Received %s, shutting down gracefully (timeout: %v)", sig, s.timeout)
		s.exec(s.ch)
	}
}

func (s *GracefulSignals) exec(termSig <-chan os.Signal) {
	s.mu.Lock()

	if s.executed {
		s.mu.Unlock()
		return
	}

	s.executed = true

	handlers := make([]signalHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	terminateCtx, terminateImmediately := context.WithCancel(context.Background())
	defer terminateImmediately()

	timeoutCtx, cancelTimeout := context.WithTimeout(terminateCtx, s.timeout)
	defer cancelTimeout()

	finished := make(chan struct{})

	go func() {
		select {
		case <-termSig:
		case <-finished:
			return
		}

		s.log.Warn("Received second signal, terminating immediately")

		terminateImmediately()

		s.mu.Lock()
		handler := s.forceTerminateHandler
		s.mu.Unlock()

		if handler != nil {
			handler()
		}
	}()

	for _, handler := range handlers {
		if err := handler(timeoutCtx); err != nil {
			s.log.Warnf("Shutdown handler failed: %v", err)
		}
	}

	close(finished)
	close(s.done)
}
