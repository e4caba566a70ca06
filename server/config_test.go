package server

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig__DecodeToml(t *testing.T) {
	tomlString := `
  host = "0.0.0.0"
  port = 8081
  max_conn = 100
  health_path = "/healthz"

  [ssl]
  cert_path = "/etc/ssl/cs.crt"
  key_path = "/etc/ssl/cs.key"
 `

	conf := NewConfig()
	_, err := toml.Decode(tomlString, &conf)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", conf.Host)
	assert.Equal(t, 8081, conf.Port)
	assert.Equal(t, 100, conf.MaxConn)
	assert.Equal(t, "/healthz", conf.HealthPath)
	assert.True(t, conf.SSL.Available())
}
