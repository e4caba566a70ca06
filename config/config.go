package config

import (
	"bytes"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/anycable/ocpp-central/events"
	"github.com/anycable/ocpp-central/metrics"
	"github.com/anycable/ocpp-central/node"
	"github.com/anycable/ocpp-central/ocpp"
	"github.com/anycable/ocpp-central/server"
	"github.com/anycable/ocpp-central/ws"
	"github.com/joomcode/errorx"
)

// Config contains main application configuration
type Config struct {
	Server  server.Config  `toml:"server"`
	WS      ws.Config      `toml:"ws"`
	Node    node.Config    `toml:"node"`
	OCPP    ocpp.Config    `toml:"ocpp"`
	Metrics metrics.Config `toml:"metrics"`
	Events  events.Config  `toml:"events"`

	// Path to serve the connected stations snapshot at (disabled if empty)
	StationsPath string `toml:"stations_path"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	Debug     bool   `toml:"debug"`

	// Graceful shutdown timeout (seconds)
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

// NewConfig returns a new config with defaults
func NewConfig() Config {
	return Config{
		Server:          server.NewConfig(),
		WS:              ws.NewConfig(),
		Node:            node.NewConfig(),
		OCPP:            ocpp.NewConfig(),
		Metrics:         metrics.NewConfig(),
		Events:          events.NewConfig(),
		StationsPath:    "/stations",
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 30,
	}
}

// LoadFromFile merges TOML file contents into the config.
// Unknown keys are treated as errors.
func (c *Config) LoadFromFile(path string) error {
	md, err := toml.DecodeFile(path, c)

	if err != nil {
		return errorx.Decorate(err, "failed to read config file %s", path)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))

		for i, key := range undecoded {
			keys[i] = key.String()
		}

		return errorx.IllegalArgument.New("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	return nil
}

// ToToml returns the TOML representation of the config
func (c *Config) ToToml() (string, error) {
	var buf bytes.Buffer

	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return "", errorx.Decorate(err, "failed to encode config")
	}

	return buf.String(), nil
}
