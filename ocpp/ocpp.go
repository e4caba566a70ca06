package ocpp

import "encoding/json"

const (
	Subprotocol16 = "ocpp1.6"

	CallCode       = 2
	CallResultCode = 3
	CallErrorCode  = 4

	// Actions handled by the bundled handlers
	BootCommand               = "BootNotification"
	HeartbeatCommand          = "Heartbeat"
	StatusNotificationCommand = "StatusNotification"

	// Errors
	NotImplementedError               = "NotImplemented"
	NotSupportedError                 = "NotSupported"
	InternalError                     = "InternalError"
	ProtocolError                     = "ProtocolError"
	SecurityError                     = "SecurityError"
	FormationViolationError           = "FormationViolation"
	PropertyConstraintViolationError  = "PropertyConstraintViolation"
	OccurenceConstraintViolationError = "OccurenceConstraintViolation"
	TypeConstraintViolationError      = "TypeConstraintViolation"
	GenericError                      = "GenericError"
)

var emptyObject = json.RawMessage("{}")

func Subprotocols() []string {
	return []string{Subprotocol16}
}

// Message is an OCPP-J envelope: Call, CallResult or CallError
type Message interface {
	ID() string
	Code() int
}

// Call is a request message, [2, uniqueId, action, payload]
type Call struct {
	UniqueID string
	Action   string
	Payload  json.RawMessage
}

var _ Message = (*Call)(nil)

func (m *Call) ID() string {
	return m.UniqueID
}

func (m *Call) Code() int {
	return CallCode
}

// CallResult is a successful response, [3, uniqueId, payload]
type CallResult struct {
	UniqueID string
	Payload  json.RawMessage
}

var _ Message = (*CallResult)(nil)

func (m *CallResult) ID() string {
	return m.UniqueID
}

func (m *CallResult) Code() int {
	return CallResultCode
}

// CallError is an error response, [4, uniqueId, errorCode, errorDescription, errorDetails]
type CallError struct {
	UniqueID         string
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

var _ Message = (*CallError)(nil)

func (m *CallError) ID() string {
	return m.UniqueID
}

func (m *CallError) Code() int {
	return CallErrorCode
}

// NewCallError builds an error reply for the call with the specified id
func NewCallError(id string, code string, description string) *CallError {
	return &CallError{UniqueID: id, ErrorCode: code, ErrorDescription: description, ErrorDetails: emptyObject}
}
