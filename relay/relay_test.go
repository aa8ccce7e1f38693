package relay

import (
	"context"
	"testing"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Opacus-xyz/Opacus/crypto"
	"github.com/Opacus-xyz/Opacus/protocol"
)

// fakeConn is a connection handle for routing-table tests; only its
// identity matters, no methods are called.
type fakeConn struct {
	quic.Connection
}

func TestNewServerGeneratesKeyPair(t *testing.T) {
	server, err := NewServer(0)
	require.NoError(t, err)

	assert.NotEqual(t, [crypto.KeySize]byte{}, server.XPub())
	assert.NotEqual(t, [crypto.KeySize]byte{}, server.xPriv)

	other, err := NewServer(0)
	require.NoError(t, err)
	assert.NotEqual(t, server.XPub(), other.XPub())
}

func TestServerStartStop(t *testing.T) {
	server, err := NewServer(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, server.Start(ctx))
	require.NotNil(t, server.Addr())

	assert.Zero(t, server.AgentCount())
	assert.Empty(t, server.ConnectedAgents())
	assert.Zero(t, server.PendingCount())

	require.NoError(t, server.Stop())
}

func TestAddrBeforeStart(t *testing.T) {
	server, err := NewServer(0)
	require.NoError(t, err)
	assert.Nil(t, server.Addr())
}

// TestRouteQueuesForAbsentRecipient exercises the offline queue directly:
// frames for unknown recipients accumulate in order and drain on connect.
func TestRouteQueuesForAbsentRecipient(t *testing.T) {
	server, err := NewServer(0)
	require.NoError(t, err)

	server.route("absent", []byte("frame-1"))
	server.route("absent", []byte("frame-2"))
	server.route("other", []byte("frame-3"))

	assert.Equal(t, 3, server.PendingCount())

	server.pendingMu.Lock()
	queued := server.pending["absent"]
	server.pendingMu.Unlock()
	require.Len(t, queued, 2)
	assert.Equal(t, []byte("frame-1"), queued[0])
	assert.Equal(t, []byte("frame-2"), queued[1])
}

// TestDrainPendingWithoutConnection re-queues frames when the recipient
// is still absent at drain time, preserving order.
func TestDrainPendingWithoutConnection(t *testing.T) {
	server, err := NewServer(0)
	require.NoError(t, err)

	server.route("ghost", []byte("a"))
	server.route("ghost", []byte("b"))
	require.Equal(t, 2, server.PendingCount())

	server.drainPending("ghost")

	// The recipient never connected, so the routing rule queues again.
	assert.Equal(t, 2, server.PendingCount())
	server.pendingMu.Lock()
	queued := server.pending["ghost"]
	server.pendingMu.Unlock()
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, queued)
}

// TestDeregisterSkipsReplacedConnection covers the fast-reconnect race:
// a stale handler exiting after the agent re-registered on a fresh
// connection must not remove the fresh record.
func TestDeregisterSkipsReplacedConnection(t *testing.T) {
	server, err := NewServer(0)
	require.NoError(t, err)

	connect := &protocol.Frame{
		Version: protocol.Version,
		Type:    protocol.FrameConnect,
		From:    "agent-1",
		To:      protocol.RelayID,
		Payload: []byte(`{}`),
	}

	stale := &fakeConn{}
	fresh := &fakeConn{}
	server.registerAgent(connect, stale)
	server.registerAgent(connect, fresh)
	require.Equal(t, 1, server.AgentCount())

	// The stale handler exits last; the fresh registration survives.
	assert.False(t, server.deregisterAgent("agent-1", stale))
	assert.Equal(t, 1, server.AgentCount())

	assert.True(t, server.deregisterAgent("agent-1", fresh))
	assert.Zero(t, server.AgentCount())

	assert.False(t, server.deregisterAgent("agent-1", fresh), "already removed")
}

func TestTouchAgentRefreshesLastSeen(t *testing.T) {
	server, err := NewServer(0)
	require.NoError(t, err)

	connect := &protocol.Frame{
		Version: protocol.Version,
		Type:    protocol.FrameConnect,
		From:    "agent-1",
		To:      protocol.RelayID,
		Payload: []byte(`{}`),
	}
	server.registerAgent(connect, &fakeConn{})

	server.mu.Lock()
	server.agents["agent-1"].LastSeen = 1
	server.mu.Unlock()

	server.touchAgent("agent-1")

	server.mu.RLock()
	last := server.agents["agent-1"].LastSeen
	server.mu.RUnlock()
	assert.Greater(t, last, int64(1))

	// Unknown agents are a no-op.
	server.touchAgent("missing")
	assert.Equal(t, 1, server.AgentCount())
}

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{"valid", "ff112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", false},
		{"short", "ff00", true},
		{"not hex", "zz112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var key [crypto.KeySize]byte
			decodeKey(tt.input, &key)
			if tt.zero {
				assert.Equal(t, [crypto.KeySize]byte{}, key)
			} else {
				assert.NotEqual(t, [crypto.KeySize]byte{}, key)
			}
		})
	}
}

func TestRegistryExposesMetrics(t *testing.T) {
	server, err := NewServer(0)
	require.NoError(t, err)

	families, err := server.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["opacus_relay_connected_agents"])
	assert.True(t, names["opacus_relay_frames_queued_total"])
}
