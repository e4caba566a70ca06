package ocpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/apex/log"
)

const internalErrorDescription = "Internal error"

// HandlerFunc processes a call payload from the station and returns the result payload.
// The result is encoded to JSON and must be an object; nil result is sent as an empty object.
type HandlerFunc func(ctx context.Context, station string, payload json.RawMessage) (interface{}, error)

// Validator checks call payloads before they reach handlers
type Validator interface {
	Validate(action string, payload json.RawMessage) error
}

// Dispatcher routes incoming calls to handlers by action name
type Dispatcher struct {
	handlers  map[string]HandlerFunc
	validator Validator
	frozen    atomic.Bool
	log       *log.Entry
}

type DispatcherOption func(*Dispatcher)

// WithValidator sets payload validator
func WithValidator(v Validator) DispatcherOption {
	return func(d *Dispatcher) {
		d.validator = v
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		log:      log.WithField("context", "dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Handle registers a handler for the action.
// Handlers could only be added before the dispatcher is frozen.
func (d *Dispatcher) Handle(action string, handler HandlerFunc) error {
	if d.frozen.Load() {
		return RegistrationFailed.New("dispatcher is frozen, can not register %s", action)
	}

	if action == "" || handler == nil {
		return RegistrationFailed.New("action name and handler are required")
	}

	if _, ok := d.handlers[action]; ok {
		return RegistrationFailed.New("handler has been already defined: %s", action)
	}

	d.handlers[action] = handler

	return nil
}

// Freeze makes the handlers table read-only
func (d *Dispatcher) Freeze() {
	d.frozen.Store(true)
}

func (d *Dispatcher) Actions() []string {
	keys := make([]string, 0, len(d.handlers))

	for k := range d.handlers {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Dispatch invokes the handler for the call and returns either CallResult or CallError.
// It never returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, station string, call *Call) Message {
	handler, ok := d.handlers[call.Action]

	if !ok {
		return NewCallError(call.UniqueID, NotImplementedError, fmt.Sprintf("no handler for action %s", call.Action))
	}

	if d.validator != nil {
		if err := d.validator.Validate(call.Action, call.Payload); err != nil {
			return NewCallError(call.UniqueID, FormationViolationError, err.Error())
		}
	}

	res, err := d.invoke(ctx, handler, station, call)

	if err != nil {
		return d.errorReply(station, call, err)
	}

	payload, err := toPayload(res)

	if err != nil {
		d.log.WithFields(log.Fields{"station": station, "action": call.Action}).Errorf("Failed to encode handler result: %v", err)
		return NewCallError(call.UniqueID, InternalError, internalErrorDescription)
	}

	return &CallResult{UniqueID: call.UniqueID, Payload: payload}
}

func (d *Dispatcher) invoke(ctx context.Context, handler HandlerFunc, station string, call *Call) (res interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler(ctx, station, call.Payload)
}

func (d *Dispatcher) errorReply(station string, call *Call, err error) *CallError {
	var ocppErr *Error

	if errors.As(err, &ocppErr) {
		reply := NewCallError(call.UniqueID, ocppErr.Code, ocppErr.Description)

		if ocppErr.Details != nil {
			if details, derr := toPayload(ocppErr.Details); derr == nil {
				reply.ErrorDetails = details
			}
		}

		return reply
	}

	d.log.WithFields(log.Fields{"station": station, "action": call.Action, "id": call.UniqueID}).
		Errorf("Handler failed: %v", err)

	return NewCallError(call.UniqueID, InternalError, internalErrorDescription)
}

func toPayload(v interface{}) (json.RawMessage, error) {
	switch val := v.(type) {
	case nil:
		return emptyObject, nil
	case json.RawMessage:
		return encodeObject(val, "result")
	}

	data, err := json.Marshal(v)

	if err != nil {
		return nil, err
	}

	return decodeObject(data, "result")
}
