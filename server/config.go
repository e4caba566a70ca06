package server

type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// Maximum number of allowed concurrent connections (0 for unlimited)
	MaxConn    int       `toml:"max_conn"`
	HealthPath string    `toml:"health_path"`
	SSL        SSLConfig `toml:"ssl"`
}

func NewConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       8080,
		HealthPath: "/health",
		SSL:        NewSSLConfig(),
	}
}
