package protocol

import (
	"fmt"
)

// Version is the current protocol version carried in every frame.
const Version uint8 = 1

// Well-known endpoint identifiers.
const (
	// RelayID is the identifier the relay uses for frames it originates.
	RelayID = "relay"
	// BroadcastID is the recipient identifier for stream broadcasts.
	BroadcastID = "broadcast"
)

// FrameType identifies the kind of protocol frame.
type FrameType uint8

const (
	// FrameConnect is the initial handshake sent after transport setup.
	FrameConnect FrameType = iota
	// FrameMsg is a point-to-point message between agents.
	FrameMsg
	// FramePing is a keepalive probe.
	FramePing
	// FrameAck acknowledges a Connect and carries the relay key.
	FrameAck
	// FrameStream carries broadcast channel data.
	FrameStream
	// FramePayment carries payment-channel traffic.
	FramePayment
)

// frameTypeNames is the single source of truth for both renderings of a
// frame type: the lowercase wire name and the capitalized canonical name
// used in HMAC and signature inputs. The two must never drift apart.
var frameTypeNames = [...]struct {
	wire      string
	canonical string
}{
	FrameConnect: {"connect", "Connect"},
	FrameMsg:     {"msg", "Msg"},
	FramePing:    {"ping", "Ping"},
	FrameAck:     {"ack", "Ack"},
	FrameStream:  {"stream", "Stream"},
	FramePayment: {"payment", "Payment"},
}

// String returns the canonical capitalized name, e.g. "Msg". This is the
// rendering authenticated by HMAC and signature inputs.
func (t FrameType) String() string {
	if int(t) >= len(frameTypeNames) {
		return fmt.Sprintf("FrameType(%d)", uint8(t))
	}
	return frameTypeNames[t].canonical
}

// Wire returns the lowercase name used in the encoded frame, e.g. "msg".
func (t FrameType) Wire() string {
	if int(t) >= len(frameTypeNames) {
		return ""
	}
	return frameTypeNames[t].wire
}

// Valid reports whether t is a known frame type.
func (t FrameType) Valid() bool {
	return int(t) < len(frameTypeNames)
}

// FrameTypeFromWire resolves a lowercase wire name back to its FrameType.
func FrameTypeFromWire(name string) (FrameType, error) {
	for i := range frameTypeNames {
		if frameTypeNames[i].wire == name {
			return FrameType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown frame type %q", ErrMalformedFrame, name)
}

// MarshalCBOR encodes the frame type as its lowercase wire name.
func (t FrameType) MarshalCBOR() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot encode unknown frame type %d", uint8(t))
	}
	return encMode.Marshal(t.Wire())
}

// UnmarshalCBOR decodes a lowercase wire name into the frame type.
func (t *FrameType) UnmarshalCBOR(data []byte) error {
	var name string
	if err := decMode.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("%w: frame type: %v", ErrMalformedFrame, err)
	}
	ft, err := FrameTypeFromWire(name)
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// Frame is the unit of protocol exchange. One frame travels in one
// datagram. Connect and Ack frames may omit HMAC and Sig; all other types
// carry both once a session key is available.
type Frame struct {
	Version uint8     `cbor:"version"`
	Type    FrameType `cbor:"type"`
	From    string    `cbor:"from"`
	To      string    `cbor:"to"`
	Seq     uint64    `cbor:"seq"`
	Ts      uint64    `cbor:"ts"`
	Nonce   string    `cbor:"nonce"`
	Payload []byte    `cbor:"payload"`
	HMAC    string    `cbor:"hmac,omitempty"`
	Sig     []byte    `cbor:"sig,omitempty"`
}

// HMACInput returns the canonical string authenticated by the frame HMAC:
// "{Type}|{from}|{to}|{seq}|{ts}|{nonce}|{hex(payload)}". The type is the
// capitalized canonical name, not the wire name.
func (f *Frame) HMACInput() string {
	return fmt.Sprintf("%s|%s|%s|%d|%d|%s|%x",
		f.Type, f.From, f.To, f.Seq, f.Ts, f.Nonce, f.Payload)
}

// SigningInput returns the canonical string covered by the Ed25519
// signature: "{version}|{Type}|{from}|{to}|{seq}|{ts}|{nonce}|{hmac}".
// The HMAC binds the payload, so the signature covers it transitively.
func (f *Frame) SigningInput(hmacHex string) string {
	return fmt.Sprintf("%d|%s|%s|%s|%d|%d|%s|%s",
		f.Version, f.Type, f.From, f.To, f.Seq, f.Ts, f.Nonce, hmacHex)
}
