package ocpp

type Config struct {
	// Heartbeat interval (seconds) returned to stations in BootNotification replies
	HeartbeatInterval int `toml:"heartbeat_interval"`
	// Validate incoming payloads against OCPP 1.6 schemas before invoking handlers
	ValidatePayloads bool `toml:"validate_payloads"`
}

func NewConfig() Config {
	return Config{
		HeartbeatInterval: 30,
		ValidatePayloads:  true,
	}
}
