package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the size in bytes of every key handled by this package.
const KeySize = 32

// IDSize is the length in bytes of the raw agent identifier (40 hex chars).
const IDSize = 20

// AgentIdentity is an agent's dual-key identity. It is immutable after
// creation: ID and Address are deterministic functions of the signing
// public key, and ID equals Address without the "0x" prefix.
type AgentIdentity struct {
	// ID is the lowercase hex of the first 20 bytes of SHA-256 over the
	// signing public key.
	ID string
	// EdPub is the Ed25519 signing public key.
	EdPub [KeySize]byte
	// EdPriv is the Ed25519 signing private key (seed form).
	EdPriv [KeySize]byte
	// XPub is the X25519 key-exchange public key.
	XPub [KeySize]byte
	// XPriv is the X25519 key-exchange private key.
	XPriv [KeySize]byte
	// Address is the ethereum-style rendering: "0x" + ID.
	Address string
	// ChainID selects the chain this identity is scoped to.
	ChainID uint64
}

// GenerateIdentity creates a fresh agent identity with random Ed25519 and
// X25519 key pairs for the given chain.
func GenerateIdentity(chainID uint64) (*AgentIdentity, error) {
	var edPriv [KeySize]byte
	if _, err := rand.Read(edPriv[:]); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	var xPriv [KeySize]byte
	if _, err := rand.Read(xPriv[:]); err != nil {
		return nil, fmt.Errorf("generate exchange key: %w", err)
	}

	identity, err := RestoreIdentity(edPriv, xPriv, chainID)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "GenerateIdentity",
		"agent_id": identity.ID,
		"chain_id": chainID,
	}).Info("Generated new agent identity")

	return identity, nil
}

// RestoreIdentity reconstructs an identity from its two 32-byte private
// keys by re-deriving both public keys and recomputing ID and address.
// The same inputs always yield the same identity.
func RestoreIdentity(edPriv, xPriv [KeySize]byte, chainID uint64) (*AgentIdentity, error) {
	edKey := ed25519.NewKeyFromSeed(edPriv[:])
	var edPub [KeySize]byte
	copy(edPub[:], edKey.Public().(ed25519.PublicKey))

	xPubSlice, err := curve25519.X25519(xPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive exchange public key: %w", err)
	}
	var xPub [KeySize]byte
	copy(xPub[:], xPubSlice)

	id := DeriveAgentID(edPub)

	return &AgentIdentity{
		ID:      id,
		EdPub:   edPub,
		EdPriv:  edPriv,
		XPub:    xPub,
		XPriv:   xPriv,
		Address: "0x" + id,
		ChainID: chainID,
	}, nil
}

// DeriveAgentID computes the agent identifier for a signing public key:
// lowercase hex of the first 20 bytes of SHA-256 over the key.
func DeriveAgentID(edPub [KeySize]byte) string {
	sum := sha256.Sum256(edPub[:])
	return hex.EncodeToString(sum[:IDSize])
}

// ExportKeys returns hex encodings of both private keys for persistence.
func (id *AgentIdentity) ExportKeys() (edPrivHex, xPrivHex string) {
	return hex.EncodeToString(id.EdPriv[:]), hex.EncodeToString(id.XPriv[:])
}

// ParseKeyHex decodes a 64-character hex string into a 32-byte key.
func ParseKeyHex(s string) ([KeySize]byte, error) {
	var key [KeySize]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("parse key hex: %w", err)
	}
	if len(raw) != KeySize {
		return key, fmt.Errorf("parse key hex: want %d bytes, got %d", KeySize, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
