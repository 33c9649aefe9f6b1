// Reconnect Controller
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
)

// Reconnect bridges a freshly accepted transport to a preserved
// session identified by its login name.  On success the new
// connection inherits the session and the paused room resumes; on
// failure the transport is dropped without touching the existing
// session.  The session's own lock arbitrates concurrent attempts:
// exactly one wins.
func (l *Lobby) Reconnect(conn dentcp.Client, room, player string) *dentcp.Session {
	refuse := func(why string) *dentcp.Session {
		conn.Send(dentcp.RECONNECT_FAIL, why)
		conn.Kill()
		return nil
	}

	now := time.Now()
	sess := l.reg.Session(player)
	if sess == nil {
		return refuse("unknown player")
	}
	if !sess.TryReconnect(now, l.conf.Heart.LongDisconnect) {
		return refuse("session not reconnectable")
	}

	// The claim is ours now; validate the room the peer asserts it
	// was in.
	if room != "" {
		rm := l.reg.Room(room)
		if rm == nil || !rm.Holds(player) || sess.Room() != room {
			sess.AbortReconnect()
			return refuse("unknown room")
		}
	}

	current := sess.Room()
	if current != "" {
		if rm := l.reg.Room(current); rm != nil {
			if opp := rm.Opponent(player); opp != "" {
				if peer := l.reg.Session(opp); peer != nil {
					peer.Send(dentcp.PLAYER_RECONNECTING,
						fmt.Sprintf("%s,%s", current, player))
				}
			}
		}
	}

	sess.BindConn(conn, now)
	conn.Send(dentcp.RECONNECT_OK, current)
	dentcp.Debug.Printf("%s rebound to a new transport", sess)

	if current != "" {
		if rm := l.reg.Room(current); rm != nil && rm.Resume(player) {
			l.broadcast(rm, dentcp.PLAYER_RECONNECTED,
				fmt.Sprintf("%s,%s", current, player))
			l.broadcast(rm, dentcp.GAME_RESUMED, current)
		}
	}
	return sess
}
