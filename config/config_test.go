package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	body := `
[node]
coordinator = true
pan_id = 0x4742
eui = 1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.True(t, c.Node.Coordinator)
	assert.Equal(t, 8, c.Node.NeighborTableSize, "default NeighborTableSize")
	assert.Equal(t, 50, c.Timing.TXTimeoutMS, "default TXTimeoutMS")
	assert.Equal(t, "unet-identity.bin", c.Storage.IdentityPath)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	body := `
[node]
neighbor_table_size = 16
contiki_mac_duty_cycle = true

[timing]
tx_timeout_ms = 75
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 16, c.Node.NeighborTableSize)
	assert.True(t, c.Node.ContikiMACDutyCycle)
	assert.Equal(t, 75, c.Timing.TXTimeoutMS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
