// Package handlers contains the core station-initiated OCPP 1.6 actions:
// BootNotification, Heartbeat and StatusNotification.
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anycable/ocpp-central/events"
	"github.com/anycable/ocpp-central/ocpp"
)

const RegistrationAccepted = "Accepted"

type BootNotificationRequest struct {
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
}

type BootNotificationConfirmation struct {
	CurrentTime string `json:"currentTime"`
	Interval    int    `json:"interval"`
	Status      string `json:"status"`
}

type HeartbeatConfirmation struct {
	CurrentTime string `json:"currentTime"`
}

type StatusNotificationRequest struct {
	ConnectorID int    `json:"connectorId"`
	ErrorCode   string `json:"errorCode"`
	Status      string `json:"status"`
	Info        string `json:"info,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type Option func(*Handlers)

// WithClock overrides the time source used in replies
func WithClock(clock func() time.Time) Option {
	return func(h *Handlers) {
		h.clock = clock
	}
}

// WithEmitter sets the events emitter
func WithEmitter(e events.Emitter) Option {
	return func(h *Handlers) {
		h.emitter = e
	}
}

type Handlers struct {
	config  *ocpp.Config
	emitter events.Emitter
	clock   func() time.Time
}

func New(c *ocpp.Config, opts ...Option) *Handlers {
	h := &Handlers{
		config:  c,
		emitter: events.NoopEmitter{},
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Register adds all the handlers to the dispatcher
func (h *Handlers) Register(d *ocpp.Dispatcher) error {
	if err := d.Handle(ocpp.BootCommand, h.BootNotification); err != nil {
		return err
	}

	if err := d.Handle(ocpp.HeartbeatCommand, h.Heartbeat); err != nil {
		return err
	}

	return d.Handle(ocpp.StatusNotificationCommand, h.StatusNotification)
}

// BootNotification always accepts the station
func (h *Handlers) BootNotification(ctx context.Context, station string, payload json.RawMessage) (interface{}, error) {
	var req BootNotificationRequest

	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	h.emitter.Emit(events.NewEvent(events.BootKind, station, map[string]interface{}{
		"vendor":   req.ChargePointVendor,
		"model":    req.ChargePointModel,
		"firmware": req.FirmwareVersion,
		"interval": h.config.HeartbeatInterval,
	}))

	return &BootNotificationConfirmation{
		CurrentTime: h.now(),
		Interval:    h.config.HeartbeatInterval,
		Status:      RegistrationAccepted,
	}, nil
}

func (h *Handlers) Heartbeat(ctx context.Context, station string, payload json.RawMessage) (interface{}, error) {
	h.emitter.Emit(events.NewEvent(events.HeartbeatKind, station, nil))

	return &HeartbeatConfirmation{CurrentTime: h.now()}, nil
}

// StatusNotification publishes connector status and replies with an empty object
func (h *Handlers) StatusNotification(ctx context.Context, station string, payload json.RawMessage) (interface{}, error) {
	var req StatusNotificationRequest

	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"connector":  req.ConnectorID,
		"status":     req.Status,
		"error_code": req.ErrorCode,
	}

	if req.Info != "" {
		data["info"] = req.Info
	}

	h.emitter.Emit(events.NewEvent(events.StatusKind, station, data))

	return nil, nil
}

func (h *Handlers) now() string {
	return h.clock().UTC().Format(time.RFC3339)
}

func decode(payload json.RawMessage, target interface{}) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return ocpp.NewError(ocpp.TypeConstraintViolationError, "invalid payload: %v", err)
	}

	return nil
}
