// Package fake provides predictable, controllable implementations of
// this module's collaborator interfaces, for use in tests.
//
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package fake

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrTransportClosed is returned by Send once Break has been called.
var ErrTransportClosed = errors.New("fake transport is closed")

// Transport is an in-memory api.Transport for unit tests: Send appends
// to an inspectable record of outbound frames instead of touching a
// real socket.
type Transport struct {
	mu       sync.Mutex
	peerID   string
	sent     [][]byte
	closed   bool
	cleanEnd bool
	sendErr  error
}

// NewTransport creates a fake transport with a random peer ID.
func NewTransport() *Transport {
	return &Transport{peerID: uuid.NewString()}
}

// NewTransportWithPeerID creates a fake transport with a caller-chosen
// peer ID, useful when a test asserts on diagnostic messages that
// embed it.
func NewTransportWithPeerID(peerID string) *Transport {
	return &Transport{peerID: peerID}
}

// Send implements api.Transport.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	if t.sendErr != nil {
		return t.sendErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.sent = append(t.sent, cp)
	return nil
}

// Break implements api.Transport.
func (t *Transport) Break(clean bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.cleanEnd = clean
	return nil
}

// PeerID implements api.Transport.
func (t *Transport) PeerID() string { return t.peerID }

// SetSendError makes every subsequent Send call fail with err.
func (t *Transport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Sent returns every frame passed to Send so far, in order.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// Closed reports whether Break has been called, and with what
// clean value.
func (t *Transport) Closed() (closed, clean bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed, t.cleanEnd
}
