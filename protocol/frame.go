// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package protocol

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Frame is a decoded view of a single WebSocket frame (spec.md §3).
type Frame struct {
	Final    bool
	Reserved byte // 3-bit RSV1..RSV3, MUST be zero for this engine
	Opcode   Opcode
	Masked   bool
	MaskKey  [4]byte
	Payload  []byte
}

// ErrFrameTooLarge is returned by Decode when a frame's declared
// payload length cannot be represented as a Go slice length on this
// platform (practically unreachable on 64-bit, kept as a guard).
var ErrFrameTooLarge = errors.New("frame payload length overflows int")

// Encode serializes a single frame: FIN/opcode/reserved bits, the
// 7/16/64-bit length form, an optional fresh random masking key, and
// the (optionally masked) payload. masked is the caller's decision —
// a Client always masks, a Server never does (spec.md §4.1).
func Encode(fin bool, opcode Opcode, payload []byte, masked bool) ([]byte, error) {
	var b0 byte
	if fin {
		b0 = finBit
	}
	b0 |= byte(opcode) & 0x0F

	n := len(payload)
	var header []byte
	switch {
	case n <= 125:
		header = []byte{b0, lengthByte(n, masked)}
	case n <= 0xFFFF:
		header = make([]byte, 4)
		header[0] = b0
		header[1] = lengthByte(126, masked)
		binary.BigEndian.PutUint16(header[2:], uint16(n))
	default:
		header = make([]byte, 10)
		header[0] = b0
		header[1] = lengthByte(127, masked)
		binary.BigEndian.PutUint64(header[2:], uint64(n))
	}

	out := make([]byte, 0, len(header)+4+n)
	out = append(out, header...)

	if !masked {
		out = append(out, payload...)
		return out, nil
	}

	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, errors.Wrap(err, "generate masking key")
	}
	out = append(out, key[:]...)
	start := len(out)
	out = append(out, payload...)
	for i := 0; i < n; i++ {
		out[start+i] ^= key[i%4]
	}
	return out, nil
}

func lengthByte(n int, masked bool) byte {
	b := byte(n)
	if masked {
		b |= maskBit
	}
	return b
}

// Decode attempts to parse a single frame from the front of raw,
// given the decoding endpoint's own role. It returns (frame,
// consumed, nil) on success, (nil, 0, nil) if raw does not yet
// contain a complete frame ("need more bytes"), or a non-nil error
// only for conditions that can never resolve by waiting for more
// bytes.
//
// Per spec.md §4.1 step 3, a masking key is read iff role is Server
// — a Server always receives masked frames from its Client peer, and
// a Client always receives unmasked frames from its Server peer; the
// decoding side's own role determines the header shape, not the
// frame's own mask bit.
func Decode(raw []byte, role Role) (*Frame, int, error) {
	if len(raw) < 2 {
		return nil, 0, nil
	}

	fin := raw[0]&finBit != 0
	reserved := (raw[0] >> 4) & 0x07
	opcode := Opcode(raw[0] & 0x0F)
	masked := raw[1]&maskBit != 0
	length := int64(raw[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(raw) < offset+2 {
			return nil, 0, nil
		}
		length = int64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case 127:
		if len(raw) < offset+8 {
			return nil, 0, nil
		}
		length = int64(binary.BigEndian.Uint64(raw[offset:]))
		offset += 8
	}
	if length < 0 || length > int64(^uint(0)>>1) {
		return nil, 0, ErrFrameTooLarge
	}

	var key [4]byte
	if role == RoleServer {
		if len(raw) < offset+4 {
			return nil, 0, nil
		}
		copy(key[:], raw[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if total < offset || len(raw) < total {
		return nil, 0, nil
	}

	payload := make([]byte, length)
	copy(payload, raw[offset:total])
	if role == RoleServer {
		for i := range payload {
			payload[i] ^= key[i%4]
		}
	}

	return &Frame{
		Final:    fin,
		Reserved: reserved,
		Opcode:   opcode,
		Masked:   masked,
		MaskKey:  key,
		Payload:  payload,
	}, total, nil
}
