package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"

	"github.com/Opacus-xyz/Opacus/protocol"
)

// ALPN is the application protocol identifier negotiated on every
// connection.
const ALPN = "opacus"

// QueueCapacity bounds the inbound frame queue.
const QueueCapacity = 256

// CloseReason is sent with the application close code on Close.
const CloseReason = "bye"

// State is the lifecycle state of a transport.
type State int32

const (
	// StateIdle is the initial state before Connect.
	StateIdle State = iota
	// StateConnecting covers the QUIC handshake.
	StateConnecting
	// StateOpen means frames can be sent and received.
	StateOpen
	// StateClosed is terminal.
	StateClosed
)

// String returns a short name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// QUICTransport is a single-peer bidirectional datagram channel. It is
// safe for concurrent use. The zero value is not usable; construct with
// NewQUICTransport.
type QUICTransport struct {
	serverAddr string
	tlsConf    *tls.Config

	mu     sync.Mutex
	state  State
	conn   quic.Connection
	cancel context.CancelFunc

	frames  chan *protocol.Frame
	dropped atomic.Uint64
}

// NewQUICTransport creates an idle transport that will dial serverAddr
// ("host:port") when connected. tlsConf may be nil, in which case a
// development configuration that skips certificate verification is used;
// production callers supply a config with a real verifier.
func NewQUICTransport(serverAddr string, tlsConf *tls.Config) *QUICTransport {
	if tlsConf == nil {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	} else {
		tlsConf = tlsConf.Clone()
	}
	tlsConf.NextProtos = []string{ALPN}

	return &QUICTransport{
		serverAddr: serverAddr,
		tlsConf:    tlsConf,
		state:      StateIdle,
		frames:     make(chan *protocol.Frame, QueueCapacity),
	}
}

// State returns the current lifecycle state.
func (t *QUICTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsConnected reports whether the transport is open.
func (t *QUICTransport) IsConnected() bool {
	return t.State() == StateOpen
}

// Dropped returns the number of inbound frames discarded because the
// queue was full.
func (t *QUICTransport) Dropped() uint64 {
	return t.dropped.Load()
}

// Connect establishes the QUIC connection and starts the reader
// goroutine. On handshake failure the transport moves to Closed and the
// error is returned.
func (t *QUICTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case StateIdle:
		t.state = StateConnecting
	case StateClosed:
		t.mu.Unlock()
		return ErrClosed
	default:
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.mu.Unlock()

	conn, err := quic.DialAddr(ctx, t.serverAddr, t.tlsConf, &quic.Config{
		EnableDatagrams: true,
	})
	if err != nil {
		t.mu.Lock()
		t.state = StateClosed
		t.mu.Unlock()
		return fmt.Errorf("dial %s: %w", t.serverAddr, err)
	}

	readerCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if t.state != StateConnecting {
		// Closed while the handshake was in flight.
		t.mu.Unlock()
		cancel()
		_ = conn.CloseWithError(0, CloseReason)
		return ErrClosed
	}
	t.conn = conn
	t.cancel = cancel
	t.state = StateOpen
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"server":   t.serverAddr,
	}).Debug("QUIC connection established")

	go t.readLoop(readerCtx, conn)

	return nil
}

// readLoop pulls datagrams until the connection fails, decoding each into
// the bounded queue. Decode failures are logged and skipped; a full queue
// drops the newest frame. The loop closes the queue on exit so Recv can
// signal end-of-stream after draining.
func (t *QUICTransport) readLoop(ctx context.Context, conn quic.Connection) {
	defer close(t.frames)

	for {
		data, err := conn.ReceiveDatagram(ctx)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"error":    err.Error(),
			}).Debug("Datagram read ended")
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"error":    err.Error(),
			}).Warn("Dropping undecodable datagram")
			continue
		}

		select {
		case t.frames <- frame:
		default:
			t.dropped.Add(1)
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"dropped":  t.dropped.Load(),
			}).Warn("Inbound queue full, dropping frame")
		}
	}
}

// Send encodes the frame and transmits it as a single datagram. It fails
// when the transport is not open or the encoding exceeds the path MTU.
func (t *QUICTransport) Send(frame *protocol.Frame) error {
	t.mu.Lock()
	conn := t.conn
	state := t.state
	t.mu.Unlock()

	if state != StateOpen {
		return fmt.Errorf("%w: state %s", ErrNotOpen, state)
	}

	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}

	if err := conn.SendDatagram(data); err != nil {
		var tooLarge *quic.DatagramTooLargeError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: %d bytes exceeds max %d",
				ErrDatagramTooLarge, len(data), tooLarge.PeerMaxDatagramFrameSize)
		}
		return fmt.Errorf("send datagram: %w", err)
	}
	return nil
}

// Recv returns the next inbound frame. It blocks until a frame arrives,
// the context is done, or the reader has exited and the queue is drained,
// in which case it reports ErrClosed.
func (t *QUICTransport) Recv(ctx context.Context) (*protocol.Frame, error) {
	select {
	case frame, ok := <-t.frames:
		if !ok {
			return nil, ErrClosed
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close terminates the connection with application code 0 and reason
// "bye". It is idempotent; the transport is Closed afterwards.
func (t *QUICTransport) Close() error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil
	}
	conn := t.conn
	cancel := t.cancel
	t.state = StateClosed
	t.conn = nil
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.CloseWithError(0, CloseReason); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	} else {
		// No reader was ever started, so the queue is closed here to
		// let pending Recv calls observe end-of-stream.
		close(t.frames)
	}

	logrus.WithField("function", "Close").Debug("Transport closed")
	return nil
}
