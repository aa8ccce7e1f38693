package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameTypeRenderings verifies the dual naming of frame types: the
// lowercase wire name and the capitalized canonical name come from the
// same table and never drift.
func TestFrameTypeRenderings(t *testing.T) {
	tests := []struct {
		frameType FrameType
		wire      string
		canonical string
	}{
		{FrameConnect, "connect", "Connect"},
		{FrameMsg, "msg", "Msg"},
		{FramePing, "ping", "Ping"},
		{FrameAck, "ack", "Ack"},
		{FrameStream, "stream", "Stream"},
		{FramePayment, "payment", "Payment"},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			assert.Equal(t, tt.wire, tt.frameType.Wire())
			assert.Equal(t, tt.canonical, tt.frameType.String())
			assert.True(t, tt.frameType.Valid())

			parsed, err := FrameTypeFromWire(tt.wire)
			require.NoError(t, err)
			assert.Equal(t, tt.frameType, parsed)
		})
	}
}

func TestFrameTypeFromWireUnknown(t *testing.T) {
	for _, name := range []string{"", "Msg", "MSG", "gossip"} {
		_, err := FrameTypeFromWire(name)
		assert.ErrorIs(t, err, ErrMalformedFrame, "name %q", name)
	}
}

func TestFrameTypeUnknownValue(t *testing.T) {
	bad := FrameType(42)
	assert.False(t, bad.Valid())
	assert.Empty(t, bad.Wire())
	assert.Equal(t, "FrameType(42)", bad.String())

	_, err := bad.MarshalCBOR()
	assert.Error(t, err)
}

// TestHMACInput pins the exact canonical HMAC string. The frame type
// appears in its capitalized form even though the wire form is lowercase.
func TestHMACInput(t *testing.T) {
	frame := &Frame{
		Version: 1,
		Type:    FrameMsg,
		From:    "alice",
		To:      "bob",
		Seq:     42,
		Ts:      1234567890,
		Nonce:   "1234567890-00000000deadbeef",
		Payload: []byte{0x01, 0x02, 0x03},
	}

	assert.Equal(t,
		"Msg|alice|bob|42|1234567890|1234567890-00000000deadbeef|010203",
		frame.HMACInput())
}

func TestHMACInputEmptyPayload(t *testing.T) {
	frame := &Frame{Type: FramePing, From: "a", To: "relay", Seq: 1, Ts: 2, Nonce: "n-x"}
	assert.Equal(t, "Ping|a|relay|1|2|n-x|", frame.HMACInput())
}

// TestSigningInput pins the exact canonical signing string, including the
// version prefix and the HMAC suffix.
func TestSigningInput(t *testing.T) {
	frame := &Frame{
		Version: 1,
		Type:    FrameStream,
		From:    "alice",
		To:      "broadcast",
		Seq:     7,
		Ts:      99,
		Nonce:   "99-abc",
	}

	assert.Equal(t,
		"1|Stream|alice|broadcast|7|99|99-abc|deadbeef",
		frame.SigningInput("deadbeef"))
}
