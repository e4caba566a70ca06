package ws

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/anycable/ocpp-central/ocpp"
	"github.com/anycable/ocpp-central/version"
	"github.com/apex/log"
	"github.com/gorilla/websocket"
	nanoid "github.com/matoous/go-nanoid"
)

type RequestInfo struct {
	UID string
	// Request path relative to the handler's mount path
	Path        string
	RemoteAddr  string
	Subprotocol string
}

func NewRequestInfo(r *http.Request, prefix string) (*RequestInfo, error) {
	uid, err := FetchUID(r)

	if err != nil {
		return nil, err
	}

	return &RequestInfo{
		UID:        uid,
		Path:       StripPrefix(r.URL.EscapedPath(), prefix),
		RemoteAddr: r.RemoteAddr,
	}, nil
}

type sessionHandler = func(conn *websocket.Conn, info *RequestInfo, callback func()) error

// WebsocketHandler generate a new http handler for station WebSocket connections
func WebsocketHandler(config *Config, sessionHandler sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.WithField("context", "ws")

		if config.RequireSubprotocol && !offersSubprotocol(r, ocpp.Subprotocol16) {
			ctx.Debugf("Connection rejected: %s subprotocol is not offered: %v", ocpp.Subprotocol16, websocket.Subprotocols(r))
			http.Error(w, "Unsupported subprotocol", http.StatusBadRequest)
			return
		}

		info, err := NewRequestInfo(r, config.Path)
		if err != nil {
			ctx.Errorf("Failed to retrieve connection uid: %v", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		upgrader := websocket.Upgrader{
			CheckOrigin:       CheckOrigin(config.AllowedOrigins),
			Subprotocols:      ocpp.Subprotocols(),
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.EnableCompression,
		}

		rheader := map[string][]string{"X-OCPP-Central-Version": {version.Version()}}
		wsc, err := upgrader.Upgrade(w, r, rheader)
		if err != nil {
			ctx.Debugf("Websocket connection upgrade error: %#v", err.Error())
			return
		}

		info.Subprotocol = wsc.Subprotocol()

		wsc.SetReadLimit(config.MaxMessageSize)

		if config.EnableCompression {
			wsc.EnableWriteCompression(true)
		}

		sessionCtx := log.WithField("sid", info.UID)

		// Separate goroutine for better GC of caller's data.
		go func() {
			sessionCtx.Debugf("WebSocket session established: %s (subprotocol: %q)", info.Path, info.Subprotocol)
			serr := sessionHandler(wsc, info, func() {
				sessionCtx.Debugf("WebSocket session completed")
			})

			if serr != nil {
				sessionCtx.Debugf("WebSocket session failed: %v", serr)
				return
			}
		}()
	})
}

// StripPrefix returns the path relative to the mount prefix
func StripPrefix(path string, prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")

	if prefix == "" {
		return path
	}

	if path == prefix {
		return "/"
	}

	if strings.HasPrefix(path, prefix+"/") {
		return path[len(prefix):]
	}

	return path
}

func offersSubprotocol(r *http.Request, protocol string) bool {
	for _, p := range websocket.Subprotocols(r) {
		if p == protocol {
			return true
		}
	}

	return false
}

// FetchUID safely extracts uid from `X-Request-ID` header or generates a new one
func FetchUID(r *http.Request) (string, error) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		return nanoid.Nanoid()
	}

	return requestID, nil
}

func CheckOrigin(origins string) func(r *http.Request) bool {
	if origins == "" {
		return func(r *http.Request) bool { return true }
	}

	hosts := strings.Split(strings.ToLower(origins), ",")

	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}

		for _, host := range hosts {
			if host[0] == '*' && strings.HasSuffix(u.Host, host[1:]) {
				return true
			}
			if u.Host == host {
				return true
			}
		}
		return false
	}
}
