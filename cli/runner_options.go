package cli

import (
	"github.com/anycable/ocpp-central/config"
	"github.com/anycable/ocpp-central/events"
	"github.com/anycable/ocpp-central/handlers"
	"github.com/anycable/ocpp-central/ocpp"
	"github.com/joomcode/errorx"
)

// Option represents a Runner configuration function
type Option func(*Runner) error

// WithName is an Option to set Runner name
func WithName(name string) Option {
	return func(r *Runner) error {
		r.name = name
		return nil
	}
}

// WithHandlers is an Option to set a function registering OCPP action handlers
func WithHandlers(fn handlersFactory) Option {
	return func(r *Runner) error {
		if r.handlersFactory != nil {
			return errorx.IllegalArgument.New("Handlers have been already assigned")
		}
		r.handlersFactory = fn
		return nil
	}
}

// WithDefaultHandlers is an Option to register BootNotification, Heartbeat and StatusNotification handlers
func WithDefaultHandlers() Option {
	return WithHandlers(func(d *ocpp.Dispatcher, c *config.Config, e events.Emitter) error {
		return handlers.New(&c.OCPP, handlers.WithEmitter(e)).Register(d)
	})
}

// WithEventsAdapter adds an events adapter along with the configured ones
func WithEventsAdapter(adapter events.Adapter) Option {
	return func(r *Runner) error {
		r.adapters = append(r.adapters, adapter)
		return nil
	}
}

// WithShutdownable adds a new shutdownable instance to be shutdown at server stop
func WithShutdownable(instance Shutdownable) Option {
	return func(r *Runner) error {
		r.shutdownables = append(r.shutdownables, instance)
		return nil
	}
}
