package transport

import "errors"

var (
	// ErrNotOpen indicates an operation that requires an open transport.
	ErrNotOpen = errors.New("transport not open")
	// ErrAlreadyConnected indicates a second Connect on the same transport.
	ErrAlreadyConnected = errors.New("transport already connected")
	// ErrClosed signals end-of-stream: the reader has exited and the
	// inbound queue is drained.
	ErrClosed = errors.New("transport closed")
	// ErrDatagramTooLarge indicates a frame exceeding the path MTU.
	ErrDatagramTooLarge = errors.New("datagram too large")
)
