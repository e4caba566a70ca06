package ocpp

import (
	"fmt"

	"github.com/joomcode/errorx"
)

var (
	Errors = errorx.NewNamespace("ocpp")

	// MalformedEnvelope is returned by Decode when a frame is not a valid OCPP-J message
	MalformedEnvelope = Errors.NewType("malformed_envelope")
	// RegistrationFailed is returned when a handler could not be added to a dispatcher
	RegistrationFailed = Errors.NewType("registration_failed")
)

// IsMalformed returns true if the error was caused by an invalid frame
func IsMalformed(err error) bool {
	return errorx.IsOfType(err, MalformedEnvelope)
}

// Error could be returned by handlers to reply with the specific OCPP error code
type Error struct {
	Code        string
	Description string
	Details     interface{}
}

func NewError(code string, description string, args ...interface{}) *Error {
	if len(args) > 0 {
		description = fmt.Sprintf(description, args...)
	}

	return &Error{Code: code, Description: description}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithDetails sets error details sent to the station
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}
