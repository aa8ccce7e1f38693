package protocol

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformedFrame indicates bytes that do not decode to a valid frame.
var ErrMalformedFrame = errors.New("malformed frame")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	// Canonical encoding keeps the byte representation deterministic for
	// structurally identical frames on a given endianness.
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: encoder setup: %v", err))
	}
	dm, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: decoder setup: %v", err))
	}
	encMode = em
	decMode = dm
}

// Encode serializes a frame to its deterministic CBOR form.
func Encode(frame *Frame) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrMalformedFrame)
	}
	data, err := encMode.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// Decode parses CBOR bytes into a frame. Truncated or structurally
// invalid input is rejected with an error wrapping ErrMalformedFrame.
func Decode(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedFrame)
	}
	var frame Frame
	if err := decMode.Unmarshal(data, &frame); err != nil {
		if errors.Is(err, ErrMalformedFrame) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return &frame, nil
}

// EncodedSize estimates the encoded size of a frame without allocating
// the full encoding. Headers and authentication fields fit comfortably
// in the fixed overhead.
func EncodedSize(frame *Frame) int {
	const overhead = 256
	if frame == nil {
		return 0
	}
	return overhead + len(frame.Payload)
}
