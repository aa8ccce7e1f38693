// Package protocol defines the Opacus wire frame and its binary codec.
//
// Every datagram exchanged between an agent and the relay carries exactly
// one Frame, encoded as a CBOR map with field names preserved. The frame
// type has two renderings: a lowercase wire name used in the encoded form
// and a capitalized canonical name used in HMAC and signature inputs. Both
// come from a single mapping table in this package.
//
// Example:
//
//	frame := &protocol.Frame{
//	    Version: protocol.Version,
//	    Type:    protocol.FrameMsg,
//	    From:    "a1b2...",
//	    To:      "c3d4...",
//	}
//	data, err := protocol.Encode(frame)
//	if err != nil {
//	    log.Fatal(err)
//	}
package protocol
