package events

import (
	"fmt"
	"strings"

	natsgo "github.com/nats-io/nats.go"
)

type Config struct {
	// Comma-separated list of adapters: log, nats, redis
	Adapter string      `toml:"adapter"`
	NATS    NATSConfig  `toml:"nats"`
	Redis   RedisConfig `toml:"redis"`
}

type NATSConfig struct {
	Servers              string `toml:"servers"`
	SubjectPrefix        string `toml:"subject_prefix"`
	DontRandomizeServers bool   `toml:"dont_randomize_servers"`
	MaxReconnectAttempts int    `toml:"max_reconnect_attempts"`
}

type RedisConfig struct {
	URL     string `toml:"url"`
	Channel string `toml:"channel"`
	// Size of the outgoing events buffer
	BufferSize int `toml:"buffer_size"`
}

func NewConfig() Config {
	return Config{
		Adapter: "log",
		NATS: NATSConfig{
			Servers:              natsgo.DefaultURL,
			SubjectPrefix:        "ocpp.events",
			MaxReconnectAttempts: 5,
		},
		Redis: RedisConfig{
			URL:        "redis://localhost:6379",
			Channel:    "__ocpp_events__",
			BufferSize: 1024,
		},
	}
}

// Adapters returns the list of configured adapter names
func (c Config) Adapters() []string {
	res := []string{}

	for _, name := range strings.Split(c.Adapter, ",") {
		name = strings.TrimSpace(name)

		if name != "" {
			res = append(res, name)
		}
	}

	return res
}

// FromConfig builds an emitter for all the configured adapters
func FromConfig(c *Config) (*Multi, error) {
	adapters := []Adapter{}

	for _, name := range c.Adapters() {
		switch name {
		case "log":
			adapters = append(adapters, NewLogEmitter())
		case "nats":
			adapters = append(adapters, NewNATSEmitter(&c.NATS))
		case "redis":
			adapters = append(adapters, NewRedisEmitter(&c.Redis))
		default:
			return nil, fmt.Errorf("unknown events adapter: %s", name)
		}
	}

	return NewMulti(adapters...), nil
}
