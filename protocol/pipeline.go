// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package protocol

import (
	"github.com/eapache/queue"
)

// Pipeline accumulates bytes delivered by a transport into a
// reassembly buffer, extracts every complete frame currently
// available, and hands them back to the caller one at a time, in
// arrival order (spec.md §4.2). It never reorders, merges, or
// duplicates frames.
type Pipeline struct {
	role        Role
	buf         []byte
	initialCap  int
	// ready holds fully-decoded frames produced by the most recent
	// Deliver call that the caller has not yet drained via Next.
	// Using a FIFO here (rather than, say, appending to a slice and
	// indexing it) makes the ordering invariant structural: whatever
	// comes out of Next is exactly what went into ready, in order.
	ready *queue.Queue
}

// NewPipeline constructs an empty pipeline for the given role, with
// initialCapacity as a hint for the reassembly buffer's starting
// capacity.
func NewPipeline(role Role, initialCapacity int) *Pipeline {
	if initialCapacity <= 0 {
		initialCapacity = 4096
	}
	return &Pipeline{
		role:       role,
		buf:        make([]byte, 0, initialCapacity),
		initialCap: initialCapacity,
		ready:      queue.New(),
	}
}

// Deliver appends data to the reassembly buffer and decodes every
// complete frame now available, queuing them for Next. It performs
// no dispatch and invokes no callback — that is the state machine's
// job, kept deliberately separate from byte-level reassembly.
func (p *Pipeline) Deliver(data []byte) error {
	p.buf = append(p.buf, data...)
	for {
		frame, consumed, err := Decode(p.buf, p.role)
		if err != nil {
			return err
		}
		if frame == nil {
			break
		}
		p.ready.Add(frame)
		p.buf = p.buf[consumed:]
	}
	p.compact()
	return nil
}

// compact reclaims the backing array behind a reassembly buffer that
// has drifted a long way from a fresh allocation (each
// p.buf = p.buf[consumed:] slide leaves the bytes before the new
// start unreachable but still referenced via the same array). Rather
// than track the drift precisely, it resets an empty buffer (to a
// fresh initialCap array if it has grown past that) and otherwise
// reallocates only when the spare capacity after the live bytes
// exceeds initialCap. The consumed prefix itself is not measured, so
// it stays referenced until one of these reallocations or the next
// growing append replaces the array.
func (p *Pipeline) compact() {
	if len(p.buf) == 0 {
		if cap(p.buf) > p.initialCap {
			p.buf = make([]byte, 0, p.initialCap)
		} else {
			p.buf = p.buf[:0]
		}
		return
	}
	if cap(p.buf)-len(p.buf) <= p.initialCap {
		return
	}
	fresh := make([]byte, len(p.buf), len(p.buf)+p.initialCap)
	copy(fresh, p.buf)
	p.buf = fresh
}

// Next removes and returns the oldest decoded-but-undispatched frame,
// or nil if none is pending.
func (p *Pipeline) Next() *Frame {
	if p.ready.Length() == 0 {
		return nil
	}
	return p.ready.Remove().(*Frame)
}

// Pending reports how many decoded frames are waiting to be drained.
func (p *Pipeline) Pending() int {
	return p.ready.Length()
}
