// Heartbeat and Disconnect Monitor
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

package game

import (
	"fmt"
	"time"

	"go-dentcp"
	"go-dentcp/cmd"
)

// Monitor is the single background task that keeps every session
// honest: it sends the pings, escalates missed pongs to disconnects,
// forfeits games whose player stayed away too long, decays violation
// counters, and reaps finished rooms and dead sessions.
type Monitor struct {
	lobby *Lobby
	conf  *cmd.Conf
	shut  chan struct{}
}

func MakeMonitor(lobby *Lobby) *Monitor {
	return &Monitor{
		lobby: lobby,
		shut:  make(chan struct{}),
	}
}

func (*Monitor) String() string { return "Heartbeat Monitor" }

func (m *Monitor) Start(st *cmd.State, conf *cmd.Conf) {
	m.conf = conf
	ticker := time.NewTicker(conf.Heart.Sweep)
	defer ticker.Stop()

	for {
		select {
		case <-st.Context.Done():
			return
		case <-m.shut:
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Monitor) Shutdown() {
	close(m.shut)
}

// sweep walks a snapshot of both tables.  Session and room locks are
// only ever taken one entity at a time.
func (m *Monitor) sweep(now time.Time) {
	reg := m.lobby.Registry()

	for _, s := range reg.Sessions() {
		s.DecayViolations(now, m.conf.Limit.Reset)

		switch s.State() {
		case dentcp.Connected:
			h := m.conf.Heart
			switch s.HeartbeatTick(now, h.PingInterval, h.PongTimeout,
				h.MissedThreshold, h.ConnTimeout) {
			case dentcp.HeartbeatPing:
				if err := s.Send(dentcp.PING, ""); err != nil {
					m.expire(s, now)
				}
			case dentcp.HeartbeatExpire:
				m.expire(s, now)
			}
		case dentcp.Disconnected:
			if now.Sub(s.DisconnectedAt()) > m.conf.Heart.LongDisconnect {
				m.forfeit(s)
			}
		case dentcp.TimedOut, dentcp.Removed:
			reg.RemoveSession(s.Name())
		}
	}

	for _, rm := range reg.Rooms() {
		if rm.State() == FINISHED {
			reg.RemoveRoom(rm.Name())
		}
	}
}

// expire tears a silent transport down and routes the loss through
// the disconnect controller, exactly like a read failure would.
func (m *Monitor) expire(s *dentcp.Session, now time.Time) {
	dentcp.Debug.Printf("%s did not respond to a ping in time", s)
	s.Kill()
	if s.MarkDisconnected(now) {
		m.lobby.Disconnected(s)
	}
}

// forfeit ends the grace period: the session is timed out, the
// surviving peer wins, and the room is finished.
func (m *Monitor) forfeit(s *dentcp.Session) {
	s.SetState(dentcp.TimedOut)
	name := s.Name()
	dentcp.Debug.Printf("%s timed out", s)

	if room := s.Room(); room != "" {
		if rm := m.lobby.Registry().Room(room); rm != nil {
			prev, changed := rm.Finish()
			if changed && (prev == ACTIVE || prev == PAUSED) {
				if opp := rm.Opponent(name); opp != "" {
					if peer := m.lobby.Registry().Session(opp); peer != nil {
						peer.Send(dentcp.GAME_END,
							fmt.Sprintf("%s,%s", opp, "opponent_timeout"))
					}
				}
			}
			m.lobby.release(rm)
		}
	}
	m.lobby.Registry().RemoveSession(name)
}
