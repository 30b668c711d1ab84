// Package api defines the contracts this engine consumes from its
// collaborators but does not implement itself: the byte transport and
// the HTTP request/response containers used during the opening
// handshake.
//
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package api

// Transport is the bidirectional byte transport the engine drives.
// Implementations own the underlying socket (or whatever else moves
// bytes); the engine never opens a connection, never calls a raw
// syscall, and never schedules I/O on its own.
type Transport interface {
	// Send hands a single already-framed buffer to the transport for
	// writing. It must preserve call order with respect to other Send
	// calls on the same Transport.
	Send(data []byte) error

	// Break tears down the transport. clean indicates whether this is
	// a graceful shutdown (both sides completed the closing handshake)
	// or an abrupt one (a protocol violation or peer failure).
	Break(clean bool) error

	// PeerID returns an implementation-defined identifier for the
	// remote endpoint, used only for diagnostics.
	PeerID() string
}
