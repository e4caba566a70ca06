package node

import "time"

// Connection represents a transport-level connection to a station
type Connection interface {
	Write(msg []byte, deadline time.Time) error
	Read() ([]byte, error)
	Close(code int, reason string)
}
