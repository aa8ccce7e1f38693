// Package transport provides the datagram channel between an agent and
// the relay.
//
// The transport is built on QUIC with the unreliable datagram extension:
// one encoded frame per datagram, ALPN "opacus". A transport moves
// through Idle, Connecting, Open, and Closed states; Closed is terminal.
// While Open, a reader goroutine decodes inbound datagrams into a bounded
// queue. When the queue is full the newest inbound frame is dropped so a
// slow consumer cannot stall the reader.
package transport
