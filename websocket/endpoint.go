// Package websocket assembles the protocol pieces — frame codec,
// receive pipeline, state machine, and handshake — into the single
// Endpoint façade applications drive directly, in the manner of the
// teacher's client.Facade composing its own lower-level pieces.
//
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package websocket

import (
	"github.com/HANABLI/WebSocket/api"
	"github.com/HANABLI/WebSocket/internal/diagnostics"
	"github.com/HANABLI/WebSocket/protocol"
)

// Config holds the tunables every Endpoint is constructed with.
type Config struct {
	// InitialReassemblyCapacity sizes the receive pipeline's initial
	// buffer. Zero uses the pipeline's own default (4096).
	InitialReassemblyCapacity int

	// MaxAccumulatedMessageSize bounds a fragmented message's total
	// size. Zero (the default) means unbounded, matching
	// original_source's unbounded accumulator.
	MaxAccumulatedMessageSize int
}

// DefaultConfig returns the Config new Endpoints use when none is
// supplied.
func DefaultConfig() Config {
	return Config{InitialReassemblyCapacity: 4096}
}

// Endpoint is one live WebSocket connection: the opening handshake
// plus the ongoing send/receive protocol state. It is not internally
// synchronized — per spec.md's single-logical-owner concurrency model,
// callers must not drive the same Endpoint from two goroutines at
// once, though its diagnostics subscription may be used concurrently.
type Endpoint struct {
	role      protocol.Role
	transport api.Transport
	pipeline  *protocol.Pipeline
	machine   *protocol.StateMachine
	diag      *diagnostics.Sender

	clientKey string
	handlers  protocol.Handlers
}

// transportSink adapts api.Transport to protocol.Sink.
type transportSink struct {
	t api.Transport
}

func (s transportSink) SendRaw(data []byte) error { return s.t.Send(data) }
func (s transportSink) Break(clean bool) error    { return s.t.Break(clean) }

// New constructs an Endpoint for role, bound to transport, named name
// for diagnostics purposes. The returned Endpoint has not yet
// completed any handshake; call StartOpenAsClient/CompleteOpenAsClient
// or OpenAsServer before exchanging data frames.
func New(role protocol.Role, transport api.Transport, name string, cfg Config) *Endpoint {
	if cfg.InitialReassemblyCapacity <= 0 {
		cfg.InitialReassemblyCapacity = 4096
	}
	diag := diagnostics.New(name)
	e := &Endpoint{
		role:      role,
		transport: transport,
		pipeline:  protocol.NewPipeline(role, cfg.InitialReassemblyCapacity),
		diag:      diag,
	}
	e.machine = protocol.NewStateMachine(role, transportSink{t: transport}, diag, cfg.MaxAccumulatedMessageSize)
	return e
}

// SetPingHandler registers the callback invoked when a ping frame is
// received. A nil handler (the default) is a no-op.
func (e *Endpoint) SetPingHandler(h func(data []byte)) { e.mutateHandlers(func(hs *protocol.Handlers) { hs.Ping = h }) }

// SetPongHandler registers the callback invoked when a pong frame is
// received.
func (e *Endpoint) SetPongHandler(h func(data []byte)) { e.mutateHandlers(func(hs *protocol.Handlers) { hs.Pong = h }) }

// SetTextHandler registers the callback invoked when a complete,
// UTF-8-valid text message is received.
func (e *Endpoint) SetTextHandler(h func(data string)) { e.mutateHandlers(func(hs *protocol.Handlers) { hs.Text = h }) }

// SetBinaryHandler registers the callback invoked when a complete
// binary message is received.
func (e *Endpoint) SetBinaryHandler(h func(data []byte)) { e.mutateHandlers(func(hs *protocol.Handlers) { hs.Binary = h }) }

// SetCloseHandler registers the callback invoked exactly once when
// the closing handshake resolves, from either side.
func (e *Endpoint) SetCloseHandler(h func(statusCode int, reason string)) {
	e.mutateHandlers(func(hs *protocol.Handlers) { hs.Close = h })
}

func (e *Endpoint) mutateHandlers(mutate func(*protocol.Handlers)) {
	patch := protocol.Handlers{}
	mutate(&patch)
	// Merge against whatever is already registered rather than
	// clobbering other handlers — each Set call touches one field.
	// Endpoint keeps its own copy since StateMachine exposes no getter.
	e.handlers = mergeHandlers(e.handlers, patch)
	e.machine.SetHandlers(e.handlers)
}

func mergeHandlers(base, patch protocol.Handlers) protocol.Handlers {
	if patch.Ping != nil {
		base.Ping = patch.Ping
	}
	if patch.Pong != nil {
		base.Pong = patch.Pong
	}
	if patch.Text != nil {
		base.Text = patch.Text
	}
	if patch.Binary != nil {
		base.Binary = patch.Binary
	}
	if patch.Close != nil {
		base.Close = patch.Close
	}
	return base
}

// StartOpenAsClient begins a client-side opening handshake, writing
// the required headers into req.
func (e *Endpoint) StartOpenAsClient(req api.Request) error {
	key, err := protocol.StartOpenAsClient(req)
	if err != nil {
		return err
	}
	e.clientKey = key
	return nil
}

// CompleteOpenAsClient finishes a client-side opening handshake by
// validating the server's response. On success the Endpoint is ready
// to exchange data frames. The key kept since StartOpenAsClient is
// cleared either way.
func (e *Endpoint) CompleteOpenAsClient(resp api.Response) error {
	err := protocol.CompleteOpenAsClient(resp, e.clientKey)
	e.clientKey = ""
	return err
}

// OpenAsServer validates an incoming upgrade request and populates
// resp with the corresponding 101 response. trailer is any bytes the
// caller already read past the end of the HTTP request headers (e.g.
// from a buffered reader) that belong to the WebSocket stream proper;
// it is handed straight into the receive pipeline so no client bytes
// are lost to the handshake's own buffering.
func (e *Endpoint) OpenAsServer(req api.Request, resp api.Response, trailer []byte) error {
	if err := protocol.OpenAsServer(req, resp); err != nil {
		return err
	}
	if len(trailer) > 0 {
		return e.Deliver(trailer)
	}
	return nil
}

// Deliver feeds bytes received from the transport into the engine.
// The transport collaborator calls this; the engine calls no recv
// primitive of its own (spec.md §5).
func (e *Endpoint) Deliver(data []byte) error {
	if err := e.pipeline.Deliver(data); err != nil {
		return err
	}
	for {
		frame := e.pipeline.Next()
		if frame == nil {
			return nil
		}
		e.machine.Dispatch(frame)
	}
}

// NotifyBroken tells the engine the transport collaborator has
// determined the connection is gone. It always publishes a
// diagnostic; the close handler fires at most once regardless of how
// many times NotifyBroken is called, since the underlying state
// machine's close-sent guard makes a second attempt a no-op.
func (e *Endpoint) NotifyBroken(graceful bool) {
	e.machine.NotifyBroken(e.transport.PeerID())
}

// Ping sends a ping frame carrying data (at most protocol.MaxControlPayloadLen bytes).
func (e *Endpoint) Ping(data []byte) { e.machine.Ping(data) }

// Pong sends a pong frame carrying data.
func (e *Endpoint) Pong(data []byte) { e.machine.Pong(data) }

// SendText sends a text message. Pass lastFragment=false to begin (or
// continue) a fragmented message; the final call for that message
// must pass lastFragment=true.
func (e *Endpoint) SendText(data string, lastFragment bool) { e.machine.SendText(data, lastFragment) }

// SendBinary sends a binary message, with the same fragmentation
// convention as SendText.
func (e *Endpoint) SendBinary(data []byte, lastFragment bool) { e.machine.SendBinary(data, lastFragment) }

// Close initiates the closing handshake with statusCode and reason.
func (e *Endpoint) Close(statusCode int, reason string) { e.machine.Close(statusCode, reason) }

// SubscribeToDiagnostics registers delegate to receive diagnostic
// messages from this Endpoint at or above minLevel. The returned
// function ends the subscription.
func (e *Endpoint) SubscribeToDiagnostics(delegate diagnostics.Delegate, minLevel diagnostics.Level) diagnostics.Unsubscribe {
	return e.diag.Subscribe(delegate, minLevel)
}

// Role reports which side of the handshake this Endpoint played.
func (e *Endpoint) Role() protocol.Role { return e.role }

// PeerID reports the underlying transport's peer identifier.
func (e *Endpoint) PeerID() string { return e.transport.PeerID() }
