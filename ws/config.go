package ws

// Config contains WebSocket connection configuration.
type Config struct {
	// Path prefix to accept station connections at (the rest of the path identifies the station)
	Path              string `toml:"path"`
	ReadBufferSize    int    `toml:"read_buffer_size"`
	WriteBufferSize   int    `toml:"write_buffer_size"`
	MaxMessageSize    int64  `toml:"max_message_size"`
	EnableCompression bool   `toml:"enable_compression"`
	AllowedOrigins    string `toml:"allowed_origins"`
	// Reject connections not offering the ocpp1.6 subprotocol
	RequireSubprotocol bool `toml:"require_subprotocol"`
}

// NewConfig build a new Config struct
func NewConfig() Config {
	return Config{Path: "/", ReadBufferSize: 1024, WriteBufferSize: 1024, MaxMessageSize: 65536}
}
