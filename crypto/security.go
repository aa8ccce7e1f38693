package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/Opacus-xyz/Opacus/protocol"
)

// SessionInfo is the HKDF info label for session key expansion.
const SessionInfo = "opacus-session"

// MaxFrameAgeMs is the default freshness window for inbound frames.
const MaxFrameAgeMs uint64 = 60_000

// SignatureSize is the size of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Frame verification rejection reasons. The texts are part of the
// protocol's observable behavior and must not be reworded.
var (
	ErrReplayedNonce    = errors.New("Invalid or replayed nonce")
	ErrMissingHMAC      = errors.New("Missing HMAC")
	ErrMissingSignature = errors.New("Missing signature")
	ErrInvalidSignature = errors.New("Invalid signature")
	ErrHMACMismatch     = errors.New("HMAC mismatch")
)

// SecurityManager authenticates outbound frames and verifies inbound
// ones. It owns the anti-replay nonce window and the per-sender sequence
// counter. A manager belongs to a single client or receiver and needs no
// external synchronization.
type SecurityManager struct {
	nonceWindow  map[string]uint64
	lastNonce    uint64
	timeProvider TimeProvider
}

// NewSecurityManager creates a security manager using the system clock.
func NewSecurityManager() *SecurityManager {
	return NewSecurityManagerWithTimeProvider(nil)
}

// NewSecurityManagerWithTimeProvider creates a security manager with a
// custom TimeProvider. Pass nil to use the default system clock.
func NewSecurityManagerWithTimeProvider(timeProvider TimeProvider) *SecurityManager {
	if timeProvider == nil {
		timeProvider = DefaultTimeProvider{}
	}
	return &SecurityManager{
		nonceWindow:  make(map[string]uint64),
		timeProvider: timeProvider,
	}
}

func (sm *SecurityManager) nowMs() uint64 {
	return uint64(sm.timeProvider.Now().UnixMilli())
}

// DeriveSharedSecret computes the raw X25519 Diffie-Hellman output for a
// private/public key pair. The output is not hashed. A low-order peer key
// (such as the all-zero placeholder used before the relay key is known)
// yields the all-zero secret rather than an error, so frame construction
// never fails on a missing peer key.
func DeriveSharedSecret(myPriv, peerPub [KeySize]byte) [KeySize]byte {
	var shared [KeySize]byte
	out, err := curve25519.X25519(myPriv[:], peerPub[:])
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DeriveSharedSecret",
			"error":    err.Error(),
		}).Debug("X25519 produced low-order output, using zero secret")
		return shared
	}
	copy(shared[:], out)
	return shared
}

// DeriveSessionKey expands a shared secret into a 32-byte session key
// using HKDF-SHA256 with an empty salt and the given info label.
func DeriveSessionKey(shared []byte, info []byte) [KeySize]byte {
	var key [KeySize]byte
	kdf := hkdf.New(sha256.New, shared, nil, info)
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		// 32 bytes is far below the HKDF output limit.
		panic(fmt.Sprintf("crypto: hkdf expand: %v", err))
	}
	return key
}

// GenerateHMAC computes hex(HMAC-SHA256(key, data)).
func GenerateHMAC(key []byte, data string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC reports whether the expected hex digest matches the data
// under the key. Comparison is constant-time.
func VerifyHMAC(key []byte, data, expected string) bool {
	computed := GenerateHMAC(key, data)
	return hmac.Equal([]byte(computed), []byte(expected))
}

// Sign produces a pure Ed25519 signature over the message using the
// 32-byte seed form of the private key.
func Sign(edPriv [KeySize]byte, message []byte) []byte {
	key := ed25519.NewKeyFromSeed(edPriv[:])
	return ed25519.Sign(key, message)
}

// Verify checks an Ed25519 signature. It returns false on any parse or
// verification failure and never panics on malformed input.
func Verify(edPub [KeySize]byte, message, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(edPub[:]), message, sig)
}

// GenerateNonce returns an anti-replay nonce of the form
// "<decimal-ms-timestamp>-<16-hex-chars>".
func (sm *SecurityManager) GenerateNonce() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("crypto: nonce entropy: %v", err))
	}
	return fmt.Sprintf("%d-%016x", sm.nowMs(), binary.BigEndian.Uint64(buf[:]))
}

// ValidateNonce checks a nonce for well-formedness, freshness, and
// replay. On acceptance the nonce enters the window and entries older
// than twice the age limit are swept.
func (sm *SecurityManager) ValidateNonce(nonce string, maxAgeMs uint64) bool {
	parts := strings.Split(nonce, "-")
	if len(parts) != 2 {
		return false
	}
	ts, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return false
	}

	now := sm.nowMs()
	if now > ts && now-ts > maxAgeMs {
		return false
	}
	if _, seen := sm.nonceWindow[nonce]; seen {
		logrus.WithFields(logrus.Fields{
			"function": "ValidateNonce",
			"nonce":    nonce,
		}).Warn("Replay detected: nonce already in window")
		return false
	}

	sm.nonceWindow[nonce] = now
	sm.sweepNonces(maxAgeMs * 2)
	return true
}

// sweepNonces drops window entries older than maxAge milliseconds.
func (sm *SecurityManager) sweepNonces(maxAgeMs uint64) {
	now := sm.nowMs()
	for n, acceptedAt := range sm.nonceWindow {
		if now-acceptedAt >= maxAgeMs {
			delete(sm.nonceWindow, n)
		}
	}
}

// NonceWindowSize returns the number of nonces currently tracked.
func (sm *SecurityManager) NonceWindowSize() int {
	return len(sm.nonceWindow)
}

// CreateAuthFrame builds a fully authenticated frame: a fresh nonce and
// sequence number, an HMAC under the session key derived from
// DH(identity.XPriv, peerXPub), and an Ed25519 signature binding the HMAC
// into the signed envelope. The payload is covered by the HMAC, so a
// stripped payload cannot pass verification even though the signature
// input does not include it directly.
func (sm *SecurityManager) CreateAuthFrame(identity *AgentIdentity, peerXPub [KeySize]byte,
	frameType protocol.FrameType, to string, payload []byte) *protocol.Frame {

	nonce := sm.GenerateNonce()
	ts := sm.nowMs()
	sm.lastNonce++

	shared := DeriveSharedSecret(identity.XPriv, peerXPub)
	sessionKey := DeriveSessionKey(shared[:], []byte(SessionInfo))

	frame := &protocol.Frame{
		Version: protocol.Version,
		Type:    frameType,
		From:    identity.ID,
		To:      to,
		Seq:     sm.lastNonce,
		Ts:      ts,
		Nonce:   nonce,
		Payload: payload,
	}

	frame.HMAC = GenerateHMAC(sessionKey[:], frame.HMACInput())
	frame.Sig = Sign(identity.EdPriv, []byte(frame.SigningInput(frame.HMAC)))

	return frame
}

// VerifyAuthFrame checks an inbound frame end to end: nonce freshness and
// replay, signature over the canonical signing input, and HMAC under the
// session key derived from DH(myXPriv, senderXPub). Each rejection
// carries a distinct reason.
func (sm *SecurityManager) VerifyAuthFrame(frame *protocol.Frame,
	senderEdPub, myXPriv, senderXPub [KeySize]byte) error {

	if !sm.ValidateNonce(frame.Nonce, MaxFrameAgeMs) {
		return ErrReplayedNonce
	}

	if frame.HMAC == "" {
		return ErrMissingHMAC
	}
	if len(frame.Sig) == 0 {
		return ErrMissingSignature
	}
	if !Verify(senderEdPub, []byte(frame.SigningInput(frame.HMAC)), frame.Sig) {
		return ErrInvalidSignature
	}

	shared := DeriveSharedSecret(myXPriv, senderXPub)
	sessionKey := DeriveSessionKey(shared[:], []byte(SessionInfo))
	if !VerifyHMAC(sessionKey[:], frame.HMACInput(), frame.HMAC) {
		return ErrHMACMismatch
	}

	return nil
}
