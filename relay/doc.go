// Package relay implements the central Opacus router.
//
// The relay accepts QUIC connections from agents, records each agent in
// its routing table when a Connect frame arrives, and forwards frames by
// recipient ID. Frames for recipients that are not connected are held in
// an offline queue and drained in insertion order when the recipient next
// connects. The relay never verifies forwarded frames; it is an opaque
// router, and end-to-end authenticity is checked by the receiving agent.
package relay
