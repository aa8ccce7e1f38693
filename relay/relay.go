package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"

	"github.com/Opacus-xyz/Opacus/crypto"
	"github.com/Opacus-xyz/Opacus/protocol"
)

// ConnectedAgent is the relay's record of a live agent connection. The
// public keys are copied from the Connect payload; LastSeen is touched on
// every inbound frame from the agent.
type ConnectedAgent struct {
	ID       string
	EdPub    [crypto.KeySize]byte
	XPub     [crypto.KeySize]byte
	LastSeen int64

	conn quic.Connection
}

// Server is the Opacus relay: an accept loop, a routing table keyed by
// agent ID, and an offline queue for absent recipients. Frames are routed
// opaquely; the relay never inspects authentication fields.
type Server struct {
	port  int
	xPub  [crypto.KeySize]byte
	xPriv [crypto.KeySize]byte

	mu     sync.RWMutex
	agents map[string]*ConnectedAgent

	pendingMu sync.Mutex
	pending   map[string][][]byte

	listener *quic.Listener
	cancel   context.CancelFunc
	metrics  *serverMetrics
}

// NewServer creates a relay listening on the given port once started.
// The relay's X25519 key pair is generated here so the key advertised in
// Connect acknowledgments is stable for the server's lifetime.
func NewServer(port int) (*Server, error) {
	var xPriv [crypto.KeySize]byte
	if _, err := rand.Read(xPriv[:]); err != nil {
		return nil, fmt.Errorf("generate relay key: %w", err)
	}
	xPubSlice, err := curve25519.X25519(xPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive relay public key: %w", err)
	}

	s := &Server{
		port:    port,
		xPriv:   xPriv,
		agents:  make(map[string]*ConnectedAgent),
		pending: make(map[string][][]byte),
		metrics: newServerMetrics(),
	}
	copy(s.xPub[:], xPubSlice)
	return s, nil
}

// XPub returns the relay's key-exchange public key.
func (s *Server) XPub() [crypto.KeySize]byte {
	return s.xPub
}

// Registry exposes the relay's metrics registry for exposition.
func (s *Server) Registry() *prometheus.Registry {
	return s.metrics.registry
}

// Start brings up the listening endpoint with a self-signed certificate
// and runs the accept loop in the background. Cancelling ctx stops the
// accept loop; handlers for established connections run until their
// connections close.
func (s *Server) Start(ctx context.Context) error {
	tlsConf, err := generateTLSConfig()
	if err != nil {
		return err
	}

	listener, err := quic.ListenAddr(fmt.Sprintf("0.0.0.0:%d", s.port), tlsConf, &quic.Config{
		EnableDatagrams: true,
	})
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}
	s.listener = listener

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"addr":     listener.Addr().String(),
	}).Info("Relay server listening")

	go s.acceptLoop(loopCtx)
	return nil
}

// Addr returns the listener address, useful when the port was 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and stops the accept loop.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "acceptLoop",
				"error":    err.Error(),
			}).Info("Accept loop exiting")
			return
		}
		go s.handleConnection(conn)
	}
}

// connectPayload is the JSON body of a Connect frame.
type connectPayload struct {
	EdPub string `json:"edPub"`
	XPub  string `json:"xPub"`
}

// ackPayload is the JSON body of the relay's Connect acknowledgment.
type ackPayload struct {
	RelayXPub string `json:"relayXPub"`
}

// handleConnection runs the per-connection state machine: wait for a
// Connect to register the agent, then route every further frame by its
// recipient. The handler exits when the datagram read fails, at which
// point the agent is deregistered. Queued offline frames survive the
// disconnect.
func (s *Server) handleConnection(conn quic.Connection) {
	connID := uuid.NewString()[:8]
	log := logrus.WithFields(logrus.Fields{
		"conn_id": connID,
		"remote":  conn.RemoteAddr().String(),
	})
	log.Debug("New connection")

	agentID := ""
	for {
		data, err := conn.ReceiveDatagram(context.Background())
		if err != nil {
			log.WithError(err).Debug("Connection closed")
			break
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			s.metrics.decodeErrors.Inc()
			log.WithError(err).Warn("Skipping undecodable datagram")
			continue
		}

		if agentID != "" {
			s.touchAgent(agentID)
		}

		if frame.Type == protocol.FrameConnect && agentID == "" {
			agentID = frame.From
			s.registerAgent(frame, conn)
			log.WithField("agent_id", agentID).Info("Agent connected")

			s.sendAck(conn, agentID)
			s.drainPending(agentID)
			continue
		}

		s.route(frame.To, data)
	}

	if agentID != "" && s.deregisterAgent(agentID, conn) {
		log.WithField("agent_id", agentID).Info("Agent disconnected")
	}
}

// deregisterAgent removes the routing-table record for agentID, but only
// while it still belongs to the given connection. A fast reconnect may
// already have replaced the record, in which case the stale handler must
// leave the fresh registration alone.
func (s *Server) deregisterAgent(agentID string, conn quic.Connection) bool {
	s.mu.Lock()
	agent, ok := s.agents[agentID]
	if !ok || agent.conn != conn {
		s.mu.Unlock()
		return false
	}
	delete(s.agents, agentID)
	s.mu.Unlock()

	s.metrics.connectedAgents.Dec()
	return true
}

// registerAgent inserts or replaces the routing-table record for the
// connecting agent, copying the advertised public keys. Malformed key
// material degrades to zero keys; registration still succeeds because
// the relay never verifies frames itself.
func (s *Server) registerAgent(frame *protocol.Frame, conn quic.Connection) {
	var payload connectPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "registerAgent",
			"agent_id": frame.From,
			"error":    err.Error(),
		}).Warn("Unparseable connect payload, registering with zero keys")
	}

	agent := &ConnectedAgent{
		ID:       frame.From,
		LastSeen: time.Now().Unix(),
		conn:     conn,
	}
	decodeKey(payload.EdPub, &agent.EdPub)
	decodeKey(payload.XPub, &agent.XPub)

	s.mu.Lock()
	_, replaced := s.agents[frame.From]
	s.agents[frame.From] = agent
	s.mu.Unlock()

	if !replaced {
		s.metrics.connectedAgents.Inc()
	}
}

// decodeKey fills dst from a 64-char hex string, leaving it zero on any
// parse failure.
func decodeKey(hexKey string, dst *[crypto.KeySize]byte) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != crypto.KeySize {
		return
	}
	copy(dst[:], raw)
}

// sendAck acknowledges a Connect, advertising the relay's key-exchange
// public key so the client can derive session keys.
func (s *Server) sendAck(conn quic.Connection, agentID string) {
	body, err := json.Marshal(ackPayload{RelayXPub: hex.EncodeToString(s.xPub[:])})
	if err != nil {
		logrus.WithError(err).Error("Marshal ack payload")
		return
	}

	ack := &protocol.Frame{
		Version: protocol.Version,
		Type:    protocol.FrameAck,
		From:    protocol.RelayID,
		To:      agentID,
		Seq:     0,
		Ts:      uint64(time.Now().UnixMilli()),
		Payload: body,
	}

	data, err := protocol.Encode(ack)
	if err != nil {
		logrus.WithError(err).Error("Encode ack frame")
		return
	}
	if err := conn.SendDatagram(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "sendAck",
			"agent_id": agentID,
			"error":    err.Error(),
		}).Warn("Failed to send ack")
	}
}

// touchAgent refreshes the last-seen timestamp for a registered agent.
func (s *Server) touchAgent(agentID string) {
	s.mu.Lock()
	if agent, ok := s.agents[agentID]; ok {
		agent.LastSeen = time.Now().Unix()
	}
	s.mu.Unlock()
}

// route forwards the original datagram bytes to the recipient if it is
// connected, otherwise appends them to the offline queue. Routing on raw
// bytes keeps the relay byte-for-byte opaque: payload, nonce, and
// authentication fields are never re-encoded.
func (s *Server) route(to string, raw []byte) {
	s.mu.RLock()
	agent, ok := s.agents[to]
	s.mu.RUnlock()

	if !ok {
		s.pendingMu.Lock()
		s.pending[to] = append(s.pending[to], raw)
		s.pendingMu.Unlock()
		s.metrics.framesQueued.Inc()
		logrus.WithFields(logrus.Fields{
			"function":  "route",
			"recipient": to,
		}).Debug("Recipient offline, frame queued")
		return
	}

	// The lock is not held across the send.
	if err := agent.conn.SendDatagram(raw); err != nil {
		s.metrics.routeFailures.Inc()
		logrus.WithFields(logrus.Fields{
			"function":  "route",
			"recipient": to,
			"error":     err.Error(),
		}).Warn("Failed to route frame")
		return
	}
	s.metrics.framesRouted.Inc()
}

// drainPending removes the offline queue entry for a freshly connected
// agent and re-routes every queued frame in insertion order.
func (s *Server) drainPending(agentID string) {
	s.pendingMu.Lock()
	queued := s.pending[agentID]
	delete(s.pending, agentID)
	s.pendingMu.Unlock()

	if len(queued) == 0 {
		return
	}
	for _, raw := range queued {
		s.route(agentID, raw)
	}
	logrus.WithFields(logrus.Fields{
		"function": "drainPending",
		"agent_id": agentID,
		"count":    len(queued),
	}).Debug("Flushed offline queue")
}

// AgentCount returns the number of connected agents.
func (s *Server) AgentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// ConnectedAgents returns the IDs of all connected agents.
func (s *Server) ConnectedAgents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	return ids
}

// PendingCount returns the total number of frames in the offline queue.
func (s *Server) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	total := 0
	for _, frames := range s.pending {
		total += len(frames)
	}
	return total
}
