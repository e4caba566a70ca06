package node

// Config contains station sessions settings
type Config struct {
	// Default timeout for server-initiated calls (seconds)
	CallTimeout int `toml:"call_timeout"`
	// Timeout for writing a single frame (seconds)
	WriteTimeout int `toml:"write_timeout"`
	// The number of consecutive malformed frames after which the session is closed (0 to never close)
	MaxMalformedFrames int `toml:"max_malformed_frames"`
	// Disconnect stations without any activity for this period (seconds, 0 to disable)
	StaleTimeout int `toml:"stale_timeout"`
	// Accept connections without a station identifier in the path (registered as UNKNOWN)
	AllowAnonymous bool `toml:"allow_anonymous"`
	// How often to refresh node stats (seconds)
	StatsRefreshInterval int `toml:"stats_refresh_interval"`
}

// NewConfig builds a new config
func NewConfig() Config {
	return Config{
		CallTimeout:          30,
		WriteTimeout:         10,
		MaxMalformedFrames:   3,
		StatsRefreshInterval: 5,
	}
}
