package node

import "github.com/joomcode/errorx"

var (
	Errors = errorx.NewNamespace("node")

	// CallTimeout is delivered to a server-initiated call waiter when the deadline passes
	CallTimeout = Errors.NewType("call_timeout", errorx.Timeout())
	// CallCancelled is delivered to waiters when the session is closing
	CallCancelled = Errors.NewType("call_cancelled")
	SessionClosed = Errors.NewType("session_closed")
	// UnidentifiedStation is returned when the connection path has no station identifier
	UnidentifiedStation = Errors.NewType("unidentified_station")
	StationNotConnected = Errors.NewType("station_not_connected", errorx.NotFound())
)
