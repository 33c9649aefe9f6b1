// Session State
//
// Copyright (c) 2023, 2024  Philip Kaludercic
//
// This file is part of go-dentcp.
//
// go-dentcp is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-dentcp is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-dentcp. If not, see
// <http://www.gnu.org/licenses/>

package dentcp

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the per-login server-side identity.  It is created when
// a transport is accepted, named at LOGIN, and survives transport
// loss until the long disconnect threshold passes.  All fields are
// guarded by the session lock; the same lock arbitrates concurrent
// reconnect attempts.
type Session struct {
	mu sync.Mutex

	id    uuid.UUID // minted at creation, kept across reconnects
	name  string    // immutable once assigned at LOGIN
	conn  Client
	phase Phase
	state ConnState
	room  string

	// Heartbeat bookkeeping, written by the owner task (pong
	// receipt) and the heartbeat monitor (ping cadence).
	lastPong  time.Time
	pingSent  time.Time
	awaitPong bool
	missed    uint

	// Violation accounting
	violations    map[ViolationKind]uint
	lastViolation time.Time

	disconnectedAt time.Time
}

// HeartbeatAction is the monitor's verdict for one connected session.
type HeartbeatAction uint8

const (
	HeartbeatNone HeartbeatAction = iota
	HeartbeatPing
	HeartbeatExpire
)

// NewSession wraps a freshly accepted transport.  The session starts
// anonymous; it enters the registry once LOGIN succeeds.
func NewSession(conn Client, now time.Time) *Session {
	return &Session{
		id:         uuid.New(),
		conn:       conn,
		phase:      NotLoggedIn,
		state:      Connected,
		lastPong:   now,
		violations: make(map[ViolationKind]uint),
	}
}

func (s *Session) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.name == "" {
		return fmt.Sprintf("session %s", s.id)
	}
	return fmt.Sprintf("session %s (%q)", s.id, s.name)
}

func (s *Session) Id() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName assigns the login name.  The name is immutable; a second
// assignment is an internal error.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.name != "" {
		panic("Session renamed")
	}
	s.name = name
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) SetRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = room
}

func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetState(st ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Session) DisconnectedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectedAt
}

// Send forwards a frame to the session's transport, if it currently
// has a live one.  Frames for sessions without a live transport are
// dropped and are not replayed when the session reconnects.
func (s *Session) Send(op Op, data string) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state != Connected || conn == nil {
		return nil
	}
	return conn.Send(op, data)
}

// Kill closes the current transport, if any.
func (s *Session) Kill() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Kill()
	}
}

// MarkDisconnected transitions a connected session to disconnected
// and records the time.  It reports whether the transition happened,
// so that the read-loop teardown and the heartbeat monitor do not
// both escalate the same loss.
func (s *Session) MarkDisconnected(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return false
	}
	s.state = Disconnected
	s.disconnectedAt = now
	s.awaitPong = false
	s.missed = 0
	return true
}

// TryReconnect claims the session for a reconnecting transport.
// Exactly one concurrent attempt wins; the losers see false.  The
// claim fails if the session is not disconnected or the long
// disconnect window has passed.
func (s *Session) TryReconnect(now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Disconnected {
		return false
	}
	if now.Sub(s.disconnectedAt) > window {
		return false
	}
	s.state = Reconnecting
	return true
}

// AbortReconnect returns a claimed session to disconnected after a
// failed validation, leaving the disconnect time untouched.
func (s *Session) AbortReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Reconnecting {
		s.state = Disconnected
	}
}

// BindConn completes a reconnect: the transport handle is swapped to
// the new connection and the heartbeat counters reset.  The session
// keeps its identity.
func (s *Session) BindConn(conn Client, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.state = Connected
	s.lastPong = now
	s.awaitPong = false
	s.missed = 0
}

// ObservePong records a PONG from the peer.
func (s *Session) ObservePong(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPong = now
	s.awaitPong = false
	s.missed = 0
}

// HeartbeatTick advances the ping state machine for one sweep and
// tells the monitor what to do.  An unanswered ping past the pong
// timeout counts as a miss; too many misses, or no pong at all for
// the connection timeout, expire the session.
func (s *Session) HeartbeatTick(now time.Time, interval, pongTimeout time.Duration, missedMax uint, connTimeout time.Duration) HeartbeatAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connected {
		return HeartbeatNone
	}
	if now.Sub(s.lastPong) > connTimeout {
		return HeartbeatExpire
	}
	if s.awaitPong {
		if now.Sub(s.pingSent) <= pongTimeout {
			return HeartbeatNone
		}
		s.awaitPong = false
		s.missed++
		if s.missed >= missedMax {
			return HeartbeatExpire
		}
	}
	if now.Sub(s.pingSent) >= interval {
		s.awaitPong = true
		s.pingSent = now
		return HeartbeatPing
	}
	return HeartbeatNone
}

// Charge records a violation of KIND and returns the new count for
// that kind.
func (s *Session) Charge(kind ViolationKind, now time.Time) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations[kind]++
	s.lastViolation = now
	return s.violations[kind]
}

// DecayViolations clears all counters once the session has been
// clean for the reset window.
func (s *Session) DecayViolations(now time.Time, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.violations) == 0 || s.lastViolation.IsZero() {
		return
	}
	if now.Sub(s.lastViolation) > window {
		s.violations = make(map[ViolationKind]uint)
	}
}

// Violations returns the current count for KIND.
func (s *Session) Violations(kind ViolationKind) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations[kind]
}
