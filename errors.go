package opacus

import "errors"

var (
	// ErrConfig indicates an unusable configuration.
	ErrConfig = errors.New("invalid configuration")
	// ErrNotInitialized indicates a client operation before Init.
	ErrNotInitialized = errors.New("client not initialized: call Init or InitFromKeys first")
	// ErrNotConnected indicates a client operation before Connect.
	ErrNotConnected = errors.New("client not connected: call Connect first")
	// ErrAlreadyConnected indicates a second Connect without Disconnect.
	ErrAlreadyConnected = errors.New("client already connected: call Disconnect first")
)
