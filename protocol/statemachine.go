// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package protocol

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/HANABLI/WebSocket/internal/diagnostics"
	"github.com/HANABLI/WebSocket/internal/pool"
)

// Sink is the narrow surface the state machine needs from its
// transport, kept separate from api.Transport so unit tests can
// substitute a simple recorder (spec.md §6.4's Endpoint façade wires
// a real api.Transport into this interface).
type Sink interface {
	SendRaw(data []byte) error
	Break(clean bool) error
}

// Handlers groups every callback the state machine may invoke.
// A nil field is a no-op per spec.md §9 ("a missing handler is
// equivalent to a no-op").
type Handlers struct {
	Ping   func(data []byte)
	Pong   func(data []byte)
	Text   func(data string)
	Binary func(data []byte)
	Close  func(statusCode int, reason string)
}

// StateMachine owns send/receive fragmentation state, the close
// handshake flags, the fragmentation accumulator, and handler
// dispatch for one Endpoint session (spec.md §4.3).
//
// Grounded almost line-for-line on original_source/src/WebSocket.cpp's
// Impl methods (ReceiveFrame, Close, OnCloseReceipt, OnTextMessage,
// SendFrame), adapted to Go idiom: a switch-on-opcode dispatcher as in
// the teacher's protocol.WSConnection.handleControl.
type StateMachine struct {
	role Role
	sink Sink
	diag *diagnostics.Sender

	handlers Handlers

	sendFrag FragmentKind
	recvFrag FragmentKind

	closeSent     bool
	closeReceived bool
	// closeWasFail records whether closeSent was set by failClose
	// rather than a graceful Close, so onCloseReceipt can tell a
	// completed bilateral close from an abnormal one.
	closeWasFail bool

	accumPool *pool.BytePool
	accum     []byte

	// maxAccumulated bounds the fragmentation accumulator; 0 means
	// unbounded, matching original_source (it never imposed a limit).
	maxAccumulated int
}

// NewStateMachine constructs a StateMachine for role, delivering
// outbound bytes and break requests through sink and publishing
// diagnostics through diag.
func NewStateMachine(role Role, sink Sink, diag *diagnostics.Sender, maxAccumulated int) *StateMachine {
	return &StateMachine{
		role:           role,
		sink:           sink,
		diag:           diag,
		accumPool:      pool.NewBytePool(4096),
		maxAccumulated: maxAccumulated,
	}
}

// SetHandlers installs the handler set, replacing any previously
// registered handlers wholesale.
func (m *StateMachine) SetHandlers(h Handlers) {
	m.handlers = h
}

// masksOutbound reports whether frames this endpoint sends must be
// masked: a Client masks, a Server never does (spec.md §3).
func (m *StateMachine) masksOutbound() bool {
	return m.role == RoleClient
}

// Dispatch processes one decoded frame, per spec.md §4.3's per-frame
// handling table. It is the only entry point by which a received
// frame reaches application handlers or the close machinery.
func (m *StateMachine) Dispatch(f *Frame) {
	if f.Reserved != 0 {
		m.failClose(CloseProtocolError, "reserved bits set")
		return
	}

	switch f.Opcode {
	case OpcodePing:
		if m.handlers.Ping != nil {
			m.handlers.Ping(f.Payload)
		}
		if !m.closeSent {
			m.sendFrame(true, OpcodePong, f.Payload)
		}

	case OpcodePong:
		if m.handlers.Pong != nil {
			m.handlers.Pong(f.Payload)
		}

	case OpcodeClose:
		m.dispatchClose(f.Payload)

	case OpcodeText, OpcodeBinary:
		m.dispatchDataFrame(f)

	case OpcodeContinuation:
		m.dispatchContinuation(f)

	default:
		m.failClose(CloseProtocolError, "unknown opcode")
	}
}

func (m *StateMachine) dispatchClose(payload []byte) {
	statusCode := CloseNoStatusRcvd
	var reason string
	if len(payload) >= 2 {
		statusCode = int(binary.BigEndian.Uint16(payload[:2]))
		reason = string(payload[2:])
		if !utf8.ValidString(reason) {
			m.failClose(CloseInvalidPayloadData, "invalid UTF-8 encoding in close reason")
			return
		}
	}
	m.onCloseReceipt(statusCode, reason)
}

func (m *StateMachine) dispatchDataFrame(f *Frame) {
	if m.recvFrag != FragmentNone {
		m.failClose(CloseProtocolError, "last message incomplete")
		return
	}
	if f.Final {
		m.deliverMessage(f.Opcode, f.Payload, false)
		return
	}
	kind := FragmentText
	if f.Opcode == OpcodeBinary {
		kind = FragmentBinary
	}
	m.recvFrag = kind
	m.accum = m.accumPool.Get()
	if !m.appendAccum(f.Payload) {
		return
	}
}

func (m *StateMachine) dispatchContinuation(f *Frame) {
	if m.recvFrag == FragmentNone {
		m.failClose(CloseProtocolError, "unexpected continuation frame")
		return
	}
	if !m.appendAccum(f.Payload) {
		return
	}
	if f.Final {
		kind := m.recvFrag
		message := m.accum
		m.recvFrag = FragmentNone
		m.accum = nil
		opcode := OpcodeBinary
		if kind == FragmentText {
			opcode = OpcodeText
		}
		m.deliverMessage(opcode, message, true)
	}
}

// appendAccum appends data to the accumulator, enforcing
// maxAccumulated if configured. On overflow it fails the connection
// with 1009 and returns false.
func (m *StateMachine) appendAccum(data []byte) bool {
	m.accum = append(m.accum, data...)
	if m.maxAccumulated > 0 && len(m.accum) > m.maxAccumulated {
		m.recvFrag = FragmentNone
		if m.accum != nil {
			m.accumPool.Put(m.accum[:0])
		}
		m.accum = nil
		m.failClose(CloseMessageTooBig, "accumulated message exceeds configured limit")
		return false
	}
	return true
}

// deliverMessage completes a non-fragmented or fully-reassembled
// message, validating UTF-8 for text. fromAccumulator must be true
// only when payload is m.accum (the fragmentation accumulator),
// which is returned to accumPool afterward; a single-frame payload
// fresh off Decode is never accumPool's to reclaim.
func (m *StateMachine) deliverMessage(opcode Opcode, payload []byte, fromAccumulator bool) {
	if fromAccumulator {
		defer func() {
			if cap(payload) > 0 {
				m.accumPool.Put(payload[:0])
			}
		}()
	}
	if opcode == OpcodeText {
		if !utf8.Valid(payload) {
			m.failClose(CloseInvalidPayloadData, "text message with invalid UTF-8 encoding")
			return
		}
		if m.handlers.Text != nil {
			m.handlers.Text(string(payload))
		}
		return
	}
	if m.handlers.Binary != nil {
		m.handlers.Binary(payload)
	}
}

// sendFrame encodes and writes a single frame, masking per role.
func (m *StateMachine) sendFrame(fin bool, opcode Opcode, payload []byte) error {
	raw, err := Encode(fin, opcode, payload, m.masksOutbound())
	if err != nil {
		return err
	}
	return m.sink.SendRaw(raw)
}

// Ping sends a ping frame, per spec.md §4.3's send-side API.
func (m *StateMachine) Ping(data []byte) {
	m.sendControl(OpcodePing, data)
}

// Pong sends a pong frame.
func (m *StateMachine) Pong(data []byte) {
	m.sendControl(OpcodePong, data)
}

func (m *StateMachine) sendControl(opcode Opcode, data []byte) {
	if m.closeSent || len(data) > MaxControlPayloadLen {
		return
	}
	m.sendFrame(true, opcode, data)
}

// SendText sends a text message or fragment thereof.
func (m *StateMachine) SendText(data string, lastFragment bool) {
	if m.closeSent || m.sendFrag == FragmentBinary {
		return
	}
	opcode := OpcodeText
	if m.sendFrag == FragmentText {
		opcode = OpcodeContinuation
	}
	m.sendFrame(lastFragment, opcode, []byte(data))
	m.sendFrag = nextSendState(lastFragment, FragmentText)
}

// SendBinary sends a binary message or fragment thereof.
func (m *StateMachine) SendBinary(data []byte, lastFragment bool) {
	if m.closeSent || m.sendFrag == FragmentText {
		return
	}
	opcode := OpcodeBinary
	if m.sendFrag == FragmentBinary {
		opcode = OpcodeContinuation
	}
	m.sendFrame(lastFragment, opcode, data)
	m.sendFrag = nextSendState(lastFragment, FragmentBinary)
}

func nextSendState(lastFragment bool, kind FragmentKind) FragmentKind {
	if lastFragment {
		return FragmentNone
	}
	return kind
}

// Close initiates (or idempotently no-ops on a repeat of) the closing
// handshake, per spec.md §4.3's Close semantics.
func (m *StateMachine) Close(statusCode int, reason string) {
	m.closeInternal(statusCode, reason, false)
}

// failClose is the internal fail path for protocol violations:
// discard any partially received fragmented message, send a close
// frame (if one can still be sent), then resolve the close locally
// without waiting for the peer (spec.md §7).
func (m *StateMachine) failClose(statusCode int, reason string) {
	m.recvFrag = FragmentNone
	if m.accum != nil {
		m.accumPool.Put(m.accum[:0])
		m.accum = nil
	}
	m.closeInternal(statusCode, reason, true)
}

func (m *StateMachine) closeInternal(statusCode int, reason string, fail bool) {
	if m.closeSent {
		return
	}
	m.closeSent = true
	m.closeWasFail = fail

	if statusCode == CloseAbnormalClosure {
		m.onCloseReceipt(statusCode, reason)
		return
	}

	var payload []byte
	if statusCode != CloseNoStatusRcvd {
		payload = make([]byte, 2+len(reason))
		binary.BigEndian.PutUint16(payload, uint16(statusCode))
		copy(payload[2:], reason)
	}
	m.sendFrame(true, OpcodeClose, payload)

	if fail {
		m.onCloseReceipt(statusCode, reason)
		return
	}
	if m.closeReceived {
		m.sink.Break(true)
	}
}

// onCloseReceipt finalizes the closing handshake from the receiving
// side: records close-received, invokes the close handler exactly
// once, and breaks the transport if both sides have now closed. A
// send-first-then-receive completion is a clean bilateral close
// unless the send side got there via failClose (1006 or a local
// protocol violation), which stays abnormal.
func (m *StateMachine) onCloseReceipt(statusCode int, reason string) {
	closeWasSent := m.closeSent
	closeWasFail := m.closeWasFail
	alreadyReceived := m.closeReceived
	m.closeReceived = true
	if !alreadyReceived && m.handlers.Close != nil {
		m.handlers.Close(statusCode, reason)
	}
	if closeWasSent {
		m.sink.Break(!closeWasFail)
	}
}

// NotifyBroken handles a transport-broken event from the external
// collaborator: it fails the connection with 1006 and emits a
// diagnostic (spec.md §4.3, §7).
func (m *StateMachine) NotifyBroken(peerID string) {
	m.failClose(CloseAbnormalClosure, "connection broken by peer")
	if m.diag != nil {
		m.diag.Publishf(1, "connection to %s broken by peer", peerID)
	}
}

// CloseSent reports whether a close frame has been sent (or close
// locally resolved via fail-close/1006).
func (m *StateMachine) CloseSent() bool { return m.closeSent }

// CloseReceived reports whether a close has been resolved from the
// receiving side.
func (m *StateMachine) CloseReceived() bool { return m.closeReceived }
