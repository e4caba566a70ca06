package ws

import "github.com/gorilla/websocket"

const (
	// CloseNormalClosure indicates normal closure
	CloseNormalClosure = websocket.CloseNormalClosure

	// CloseInternalServerErr indicates closure because of internal error
	CloseInternalServerErr = websocket.CloseInternalServerErr

	// CloseAbnormalClosure indicates abnormal close
	CloseAbnormalClosure = websocket.CloseAbnormalClosure

	// CloseGoingAway indicates closing because of server shuts down or client disconnects
	CloseGoingAway = websocket.CloseGoingAway

	// CloseProtocolError indicates closing because the client doesn't follow the protocol
	CloseProtocolError = websocket.CloseProtocolError

	// ClosePolicyViolation is used to reject connections which can not be served (e.g., unidentified stations)
	ClosePolicyViolation = websocket.ClosePolicyViolation
)

var (
	expectedCloseStatuses = []int{
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,        // Station is rebooting
		websocket.CloseNoStatusReceived, // Some firmwares don't care about closing
	}
)

func IsCloseError(err error) bool {
	return websocket.IsCloseError(err, expectedCloseStatuses...)
}
