package opacus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Network selects the chain environment a client operates against.
type Network string

const (
	// NetworkMainnet is the production network.
	NetworkMainnet Network = "mainnet"
	// NetworkTestnet is the public test network.
	NetworkTestnet Network = "testnet"
	// NetworkDevnet is a local development network.
	NetworkDevnet Network = "devnet"
)

// ChainID returns the chain identifier for the network.
func (n Network) ChainID() uint64 {
	switch n {
	case NetworkMainnet:
		return 16661
	case NetworkTestnet:
		return 16602
	case NetworkDevnet:
		return 16600
	default:
		return 0
	}
}

// DefaultRPC returns the default chain RPC endpoint for the network.
func (n Network) DefaultRPC() string {
	switch n {
	case NetworkMainnet:
		return "https://evmrpc.0g.ai"
	case NetworkTestnet:
		return "https://evmrpc-testnet.0g.ai"
	case NetworkDevnet:
		return "http://localhost:8545"
	default:
		return ""
	}
}

// Valid reports whether n is a known network.
func (n Network) Valid() bool {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkDevnet:
		return true
	default:
		return false
	}
}

// OpacusConfig is the client configuration.
type OpacusConfig struct {
	// Network selects the chain environment.
	Network Network `yaml:"network" json:"network"`
	// RelayURL is the relay endpoint, e.g. "quic://relay.opacus.io:4242".
	RelayURL string `yaml:"relay_url" json:"relay_url"`
	// ChainRPC is the blockchain RPC endpoint.
	ChainRPC string `yaml:"chain_rpc" json:"chain_rpc"`
	// PrivateKey optionally holds a hex private key for chain operations.
	PrivateKey string `yaml:"private_key,omitempty" json:"private_key,omitempty"`
}

// DefaultConfig returns a configuration for the network with its default
// RPC endpoint and a localhost relay.
func DefaultConfig(network Network) OpacusConfig {
	return OpacusConfig{
		Network:  network,
		RelayURL: "quic://localhost:4242",
		ChainRPC: network.DefaultRPC(),
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *OpacusConfig) Validate() error {
	if !c.Network.Valid() {
		return fmt.Errorf("%w: unknown network %q", ErrConfig, c.Network)
	}
	if c.RelayURL == "" {
		return fmt.Errorf("%w: relay_url is required", ErrConfig)
	}
	return nil
}

// LoadConfig reads a YAML configuration file, filling the chain RPC from
// the network default when unset.
func LoadConfig(path string) (OpacusConfig, error) {
	var cfg OpacusConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if cfg.ChainRPC == "" {
		cfg.ChainRPC = cfg.Network.DefaultRPC()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
