package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewConfig loads into the package-level gookit instance, so this
// stays one test with one successful load.
func TestNewConfig(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	base := `
server:
  addr: ":6470"
  turn_delay_ms: 250

stream:
  base_url: http://127.0.0.1:6470
  token: secret
  reconnect_delay_ms: 3000
  max_reconnect_attempts: 5
`
	local := `
server:
  addr: ":7000"
`

	require.NoError(t, os.WriteFile(path, []byte(base), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.yml"), []byte(local), 0o600))

	config, err := NewConfig(path)
	require.NoError(t, err)

	// the local overlay wins where it overlaps
	assert.Equal(t, ":7000", config.Server.Addr)
	assert.Equal(t, 250, config.Server.TurnDelayMs)
	assert.Empty(t, config.Server.JwksURL)

	assert.Equal(t, "http://127.0.0.1:6470", config.Stream.BaseURL)
	assert.Equal(t, 5, config.Stream.MaxReconnectAttempts)

	options := config.StreamOptions()
	assert.Equal(t, "http://127.0.0.1:6470", options.BaseURL)
	assert.Equal(t, "secret", options.Token)
	assert.Equal(t, 3*time.Second, options.ReconnectDelay)
	assert.Equal(t, 5, options.MaxReconnectAttempts)

	apiOptions := config.APIOptions()
	assert.Equal(t, "http://127.0.0.1:6470", apiOptions.BaseURL)
	assert.Equal(t, "secret", apiOptions.Token)
}
