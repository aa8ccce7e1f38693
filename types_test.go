package opacus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkChainID(t *testing.T) {
	assert.Equal(t, uint64(16661), NetworkMainnet.ChainID())
	assert.Equal(t, uint64(16602), NetworkTestnet.ChainID())
	assert.Equal(t, uint64(16600), NetworkDevnet.ChainID())
	assert.Equal(t, uint64(0), Network("nonsense").ChainID())
}

func TestNetworkDefaultRPC(t *testing.T) {
	assert.Equal(t, "https://evmrpc.0g.ai", NetworkMainnet.DefaultRPC())
	assert.Equal(t, "https://evmrpc-testnet.0g.ai", NetworkTestnet.DefaultRPC())
	assert.Equal(t, "http://localhost:8545", NetworkDevnet.DefaultRPC())
	assert.Empty(t, Network("nonsense").DefaultRPC())
}

func TestNetworkValid(t *testing.T) {
	assert.True(t, NetworkMainnet.Valid())
	assert.True(t, NetworkTestnet.Valid())
	assert.True(t, NetworkDevnet.Valid())
	assert.False(t, Network("").Valid())
	assert.False(t, Network("staging").Valid())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(NetworkTestnet)

	assert.Equal(t, NetworkTestnet, cfg.Network)
	assert.Equal(t, "quic://localhost:4242", cfg.RelayURL)
	assert.Equal(t, NetworkTestnet.DefaultRPC(), cfg.ChainRPC)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OpacusConfig
		wantErr bool
	}{
		{
			name:    "valid",
			cfg:     OpacusConfig{Network: NetworkDevnet, RelayURL: "quic://localhost:4242"},
			wantErr: false,
		},
		{
			name:    "unknown network",
			cfg:     OpacusConfig{Network: "moonnet", RelayURL: "quic://localhost:4242"},
			wantErr: true,
		},
		{
			name:    "missing relay url",
			cfg:     OpacusConfig{Network: NetworkMainnet},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opacus.yaml")
	data := "network: testnet\nrelay_url: quic://relay.example.com:4242\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, NetworkTestnet, cfg.Network)
	assert.Equal(t, "quic://relay.example.com:4242", cfg.RelayURL)
	// Unset chain_rpc falls back to the network default.
	assert.Equal(t, NetworkTestnet.DefaultRPC(), cfg.ChainRPC)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("network: [unterminated"), 0o600))

		_, err := LoadConfig(path)
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("fails validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("network: moonnet\nrelay_url: x\n"), 0o600))

		_, err := LoadConfig(path)
		assert.ErrorIs(t, err, ErrConfig)
	})
}
