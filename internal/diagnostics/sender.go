// Package diagnostics implements the endpoint's publish/subscribe
// diagnostics channel (spec.md §9 Design Notes): a simple in-process
// fan-out with an unsubscribe function returned at subscribe time,
// owned by the endpoint rather than any global registry.
//
// Grounded on the teacher's control.DebugProbes registry shape
// (sync.RWMutex-guarded map with register/unregister), generalized
// from named probes to level-filtered subscriber delegates, and on
// original_source's SystemUtils::DiagnosticsSender contract.
//
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package diagnostics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a diagnostic message. Higher is more
// severe; a subscriber receives messages at or above its minLevel,
// matching the C++ original's size_t minLevel convention
// (0 = everything).
type Level uint

// Delegate receives one published diagnostic message.
type Delegate func(senderName string, level Level, message string)

// Unsubscribe ends a subscription. Calling it more than once is a
// no-op.
type Unsubscribe func()

type subscription struct {
	id       uint64
	delegate Delegate
	minLevel Level
}

// Sender is a named diagnostics publisher. The zero value is not
// usable; construct with New.
type Sender struct {
	name string
	log  *logrus.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
}

// New creates a diagnostics sender identified by name in every
// published message and log entry.
func New(name string) *Sender {
	return &Sender{
		name: name,
		log:  logrus.StandardLogger(),
		subs: make(map[uint64]subscription),
	}
}

// Subscribe registers delegate to receive every future published
// message at level >= minLevel. The returned Unsubscribe removes the
// registration; it is safe to call from within delegate itself.
func (s *Sender) Subscribe(delegate Delegate, minLevel Level) Unsubscribe {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscription{id: id, delegate: delegate, minLevel: minLevel}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish delivers message at level to every current subscriber whose
// minLevel admits it, in subscription order, and mirrors it to the
// structured log. Delivery snapshots the subscriber set first, so a
// subscriber that unsubscribes (itself or another) from within its
// own callback cannot corrupt the fan-out in progress.
func (s *Sender) Publish(level Level, message string) {
	s.mu.RLock()
	snapshot := make([]subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		snapshot = append(snapshot, sub)
	}
	s.mu.RUnlock()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

	for _, sub := range snapshot {
		if level >= sub.minLevel {
			sub.delegate(s.name, level, message)
		}
	}

	s.log.WithFields(logrus.Fields{
		"sender": s.name,
		"level":  level,
	}).Debug(message)
}

// Publishf is Publish with fmt.Sprintf formatting.
func (s *Sender) Publishf(level Level, format string, args ...any) {
	s.Publish(level, fmt.Sprintf(format, args...))
}
