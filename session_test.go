// Session State Tests
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
	"sync"
	"testing"
	"time"
)

type nullConn struct{}

func (nullConn) String() string       { return "null" }
func (nullConn) Send(Op, string) error { return nil }
func (nullConn) Kill()                {}

const (
	interval    = 5 * time.Second
	pongTimeout = 3 * time.Second
	connTimeout = 100 * time.Second
)

func TestHeartbeatTick(t *testing.T) {
	now := time.Now()
	s := NewSession(nullConn{}, now)

	// The first sweep past the interval requests a ping.
	now = now.Add(interval)
	if a := s.HeartbeatTick(now, interval, pongTimeout, 3, connTimeout); a != HeartbeatPing {
		t.Fatalf("expected ping, got %d", a)
	}
	// While the pong is pending nothing happens.
	if a := s.HeartbeatTick(now.Add(time.Second), interval, pongTimeout, 3, connTimeout); a != HeartbeatNone {
		t.Fatalf("expected none, got %d", a)
	}
	// A pong resets the cycle.
	s.ObservePong(now.Add(2 * time.Second))

	// The next sweep pings again; three consecutive unanswered
	// pings then expire the session.
	for round := 0; round < 4; round++ {
		now = now.Add(interval + pongTimeout)
		a := s.HeartbeatTick(now, interval, pongTimeout, 3, connTimeout)
		if round < 3 && a != HeartbeatPing {
			t.Fatalf("round %d: expected ping, got %d", round, a)
		}
		if round == 3 && a != HeartbeatExpire {
			t.Fatalf("expected expire, got %d", a)
		}
	}
}

func TestHeartbeatConnTimeout(t *testing.T) {
	now := time.Now()
	s := NewSession(nullConn{}, now)

	a := s.HeartbeatTick(now.Add(connTimeout+time.Second),
		interval, pongTimeout, 3, connTimeout)
	if a != HeartbeatExpire {
		t.Fatalf("expected expire, got %d", a)
	}
}

func TestViolationDecay(t *testing.T) {
	now := time.Now()
	s := NewSession(nullConn{}, now)

	if n := s.Charge(ViolationPhase, now); n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
	if n := s.Charge(ViolationPhase, now); n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}

	// Within the window nothing decays.
	s.DecayViolations(now.Add(30*time.Second), time.Minute)
	if n := s.Violations(ViolationPhase); n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}

	// After an idle window all counters reset.
	s.DecayViolations(now.Add(2*time.Minute), time.Minute)
	if n := s.Violations(ViolationPhase); n != 0 {
		t.Fatalf("expected count 0, got %d", n)
	}
}

func TestReconnectArbitration(t *testing.T) {
	now := time.Now()
	s := NewSession(nullConn{}, now)
	s.SetName("john")

	if s.TryReconnect(now, time.Minute) {
		t.Fatal("connected session must not be reconnectable")
	}
	if !s.MarkDisconnected(now) {
		t.Fatal("expected the disconnect transition")
	}
	if s.MarkDisconnected(now) {
		t.Fatal("second disconnect must not transition")
	}

	// Many concurrent attempts; exactly one may win.
	var (
		wg   sync.WaitGroup
		wins = make(chan bool, 16)
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- s.TryReconnect(now.Add(time.Second), time.Minute)
		}()
	}
	wg.Wait()
	close(wins)

	var won int
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}

	// Past the window the claim fails.
	s.AbortReconnect()
	if s.TryReconnect(now.Add(2*time.Minute), time.Minute) {
		t.Fatal("expired session must not be reconnectable")
	}
}
