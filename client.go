package opacus

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Opacus-xyz/Opacus/crypto"
	"github.com/Opacus-xyz/Opacus/protocol"
	"github.com/Opacus-xyz/Opacus/transport"
)

// OpacusClient is the agent-side endpoint of the message plane. It owns
// the agent identity, the transport to the relay, and the security
// manager used to authenticate outbound frames and verify inbound ones.
//
// Lifecycle: NewClient, then Init or InitFromKeys, then Connect. Send and
// Recv require a connected client; Disconnect is terminal for the current
// transport but the client may Connect again.
type OpacusClient struct {
	config  OpacusConfig
	tlsConf *tls.Config

	mu          sync.Mutex
	identity    *crypto.AgentIdentity
	transport   *transport.QUICTransport
	security    *crypto.SecurityManager
	relayXPub   [crypto.KeySize]byte
	hasRelayKey bool
	seq         uint64
}

// NewClient creates a client with the given configuration. TLS
// certificate verification follows the transport default (development
// mode); use NewClientWithTLSConfig to supply a verifier.
func NewClient(config OpacusConfig) *OpacusClient {
	return NewClientWithTLSConfig(config, nil)
}

// NewClientWithTLSConfig creates a client whose transport uses the given
// TLS configuration when dialing the relay.
func NewClientWithTLSConfig(config OpacusConfig, tlsConf *tls.Config) *OpacusClient {
	return &OpacusClient{
		config:   config,
		tlsConf:  tlsConf,
		security: crypto.NewSecurityManager(),
	}
}

// Init generates a fresh identity for the configured network's chain and
// returns it.
func (c *OpacusClient) Init() (*crypto.AgentIdentity, error) {
	identity, err := crypto.GenerateIdentity(c.config.Network.ChainID())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"agent_id": identity.ID,
		"address":  identity.Address,
	}).Info("Agent initialized")

	return identity, nil
}

// InitFromKeys restores an identity from its two 32-byte private keys.
func (c *OpacusClient) InitFromKeys(edPriv, xPriv [crypto.KeySize]byte) (*crypto.AgentIdentity, error) {
	identity, err := crypto.RestoreIdentity(edPriv, xPriv, c.config.Network.ChainID())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"agent_id": identity.ID,
		"address":  identity.Address,
	}).Info("Agent restored")

	return identity, nil
}

// stripScheme removes a leading quic://, https://, or http:// scheme from
// the relay URL, leaving "host:port".
func stripScheme(url string) string {
	for _, scheme := range []string{"quic://", "https://", "http://"} {
		if strings.HasPrefix(url, scheme) {
			return strings.TrimPrefix(url, scheme)
		}
	}
	return url
}

// Connect opens the transport to the configured relay and sends the
// Connect frame advertising both public keys. The relay's Ack, carrying
// its key-exchange public key, arrives through Recv.
func (c *OpacusClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	identity := c.identity
	connected := c.transport != nil
	c.mu.Unlock()
	if identity == nil {
		return ErrNotInitialized
	}
	if connected {
		return ErrAlreadyConnected
	}

	addr := stripScheme(c.config.RelayURL)
	t := transport.NewQUICTransport(addr, c.tlsConf)
	if err := t.Connect(ctx); err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"edPub": hex.EncodeToString(identity.EdPub[:]),
		"xPub":  hex.EncodeToString(identity.XPub[:]),
	})
	if err != nil {
		_ = t.Close()
		return fmt.Errorf("marshal connect payload: %w", err)
	}

	c.mu.Lock()
	seq := c.seq
	c.seq++
	c.mu.Unlock()

	frame := &protocol.Frame{
		Version: protocol.Version,
		Type:    protocol.FrameConnect,
		From:    identity.ID,
		To:      protocol.RelayID,
		Seq:     seq,
		Ts:      uint64(time.Now().UnixMilli()),
		Nonce:   c.security.GenerateNonce(),
		Payload: payload,
	}
	if err := t.Send(frame); err != nil {
		_ = t.Close()
		return fmt.Errorf("send connect frame: %w", err)
	}

	c.mu.Lock()
	if c.transport != nil {
		// A concurrent Connect won the race; keep its transport.
		c.mu.Unlock()
		_ = t.Close()
		return ErrAlreadyConnected
	}
	c.transport = t
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"agent_id": identity.ID,
		"relay":    c.config.RelayURL,
	}).Info("Connected to relay")

	return nil
}

// sendAuth builds an authenticated frame of the given type and sends it.
// The relay key defaults to all zeros until an Ack has delivered it.
func (c *OpacusClient) sendAuth(frameType protocol.FrameType, to string, payload []byte) error {
	c.mu.Lock()
	identity := c.identity
	t := c.transport
	relayXPub := c.relayXPub
	c.mu.Unlock()

	if identity == nil {
		return ErrNotInitialized
	}
	if t == nil {
		return ErrNotConnected
	}

	frame := c.security.CreateAuthFrame(identity, relayXPub, frameType, to, payload)
	if err := t.Send(frame); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"type": frameType.String(),
		"to":   to,
		"seq":  frame.Seq,
	}).Debug("Sent authenticated frame")
	return nil
}

// SendMessage sends an authenticated Msg frame to another agent.
func (c *OpacusClient) SendMessage(to string, payload []byte) error {
	return c.sendAuth(protocol.FrameMsg, to, payload)
}

// SendStream broadcasts channel data as an authenticated Stream frame.
func (c *OpacusClient) SendStream(channelID string, data []byte) error {
	payload, err := json.Marshal(map[string]any{
		"channelId": channelID,
		"data":      data,
	})
	if err != nil {
		return fmt.Errorf("marshal stream payload: %w", err)
	}
	return c.sendAuth(protocol.FrameStream, protocol.BroadcastID, payload)
}

// Ping sends an authenticated keepalive to the relay.
func (c *OpacusClient) Ping() error {
	return c.sendAuth(protocol.FramePing, protocol.RelayID, nil)
}

// Recv returns the next inbound frame. An Ack originating elsewhere is
// inspected for the relay's key-exchange public key, which is cached for
// session key derivation; the frame is returned unchanged either way.
func (c *OpacusClient) Recv(ctx context.Context) (*protocol.Frame, error) {
	c.mu.Lock()
	t := c.transport
	identity := c.identity
	c.mu.Unlock()
	if t == nil {
		return nil, ErrNotConnected
	}

	frame, err := t.Recv(ctx)
	if err != nil {
		return nil, err
	}

	if frame.Type == protocol.FrameAck && identity != nil && frame.From != identity.ID {
		c.cacheRelayKey(frame.Payload)
	}
	return frame, nil
}

// cacheRelayKey extracts relayXPub from an Ack payload. Anything that is
// not a 32-byte hex key is ignored.
func (c *OpacusClient) cacheRelayKey(payload []byte) {
	var body struct {
		RelayXPub string `json:"relayXPub"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.RelayXPub == "" {
		return
	}
	key, err := crypto.ParseKeyHex(body.RelayXPub)
	if err != nil {
		return
	}

	c.mu.Lock()
	c.relayXPub = key
	c.hasRelayKey = true
	c.mu.Unlock()

	logrus.WithField("function", "cacheRelayKey").Debug("Cached relay public key")
}

// HasRelayKey reports whether the relay's key-exchange key is cached.
func (c *OpacusClient) HasRelayKey() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasRelayKey
}

// Identity returns the client's identity, or nil before Init.
func (c *OpacusClient) Identity() *crypto.AgentIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Security returns the client's security manager, used by receivers to
// verify inbound frames end to end.
func (c *OpacusClient) Security() *crypto.SecurityManager {
	return c.security
}

// ExportIdentity returns hex encodings of both private keys for
// persistence.
func (c *OpacusClient) ExportIdentity() (edPrivHex, xPrivHex string, err error) {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()
	if identity == nil {
		return "", "", ErrNotInitialized
	}
	edPrivHex, xPrivHex = identity.ExportKeys()
	return edPrivHex, xPrivHex, nil
}

// IsConnected reports whether the transport is open.
func (c *OpacusClient) IsConnected() bool {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	return t != nil && t.IsConnected()
}

// Disconnect closes the transport. In-flight Recv calls observe
// end-of-stream once the inbound queue drains.
func (c *OpacusClient) Disconnect() error {
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.mu.Unlock()

	if t == nil {
		return nil
	}
	if err := t.Close(); err != nil {
		return err
	}
	logrus.Info("Disconnected from relay")
	return nil
}
