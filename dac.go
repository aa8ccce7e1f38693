package opacus

import "fmt"

// ChannelType classifies the direction of a DAC data channel.
type ChannelType string

const (
	// ChannelInput receives data into the agent.
	ChannelInput ChannelType = "input"
	// ChannelOutput publishes data from the agent.
	ChannelOutput ChannelType = "output"
	// ChannelBidirectional both receives and publishes.
	ChannelBidirectional ChannelType = "bidirectional"
)

// Valid reports whether t is a known channel type.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelInput, ChannelOutput, ChannelBidirectional:
		return true
	default:
		return false
	}
}

// DACMetadata describes a decentralized agent communication unit.
type DACMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Tags        []string `json:"tags"`
}

// DataChannel defines one priced data channel of a DAC.
type DataChannel struct {
	ID           string      `json:"id"`
	ChannelType  ChannelType `json:"channel_type"`
	PricePerByte uint64      `json:"price_per_byte"`
	PricePerMsg  uint64      `json:"price_per_msg"`
}

// DACConfig is the full description of a DAC: identity, ownership,
// metadata, and its data channels. Settlement of channel pricing happens
// off the message plane and is not handled here.
type DACConfig struct {
	ID       string        `json:"id"`
	Owner    string        `json:"owner"`
	Metadata DACMetadata   `json:"metadata"`
	Channels []DataChannel `json:"channels"`
}

// Validate checks structural soundness of the DAC definition.
func (c *DACConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: dac id is required", ErrConfig)
	}
	if c.Owner == "" {
		return fmt.Errorf("%w: dac owner is required", ErrConfig)
	}
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.ID == "" {
			return fmt.Errorf("%w: channel %d: id is required", ErrConfig, i)
		}
		if !ch.ChannelType.Valid() {
			return fmt.Errorf("%w: channel %q: unknown type %q", ErrConfig, ch.ID, ch.ChannelType)
		}
	}
	return nil
}
