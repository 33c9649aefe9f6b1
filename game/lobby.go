// Lobby and Game Handlers
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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go-dentcp"
	"go-dentcp/cmd"
)

// Lobby implements every operation the dispatcher can route.  It
// owns the registry; handlers reply to the peers themselves.
type Lobby struct {
	conf *cmd.Conf
	reg  *Registry
}

func MakeLobby(conf *cmd.Conf) *Lobby {
	return &Lobby{
		conf: conf,
		reg:  MakeRegistry(),
	}
}

func (*Lobby) String() string { return "Lobby" }

func (l *Lobby) Start(st *cmd.State, conf *cmd.Conf) {}

// Shutdown drops every session; the owner tasks drain through their
// usual teardown.
func (l *Lobby) Shutdown() {
	for _, s := range l.reg.Sessions() {
		s.Kill()
	}
}

// Registry exposes the tables to the heartbeat monitor.
func (l *Lobby) Registry() *Registry {
	return l.reg
}

// reason strips the error-kind prefix off ERR for a wire reply.
func reason(err error) string {
	msg := err.Error()
	for _, kind := range []error{
		dentcp.ErrProtocol, dentcp.ErrInvalidMove, dentcp.ErrRoom,
		dentcp.ErrAuth, dentcp.ErrTransport, dentcp.ErrInternal,
	} {
		if errors.Is(err, kind) {
			return strings.TrimPrefix(msg, kind.Error()+": ")
		}
	}
	return msg
}

// validName bounds login and room names: they travel inside
// comma-separated payloads and registry keys.
func validName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	return !strings.ContainsAny(name, ",|\n\r")
}

// Login names the session and moves it to the lobby.
func (l *Lobby) Login(s *dentcp.Session, name string) {
	if !validName(name) {
		s.Send(dentcp.LOGIN_FAIL, "Invalid name")
		return
	}
	if err := l.reg.AddSession(name, s); err != nil {
		s.Send(dentcp.LOGIN_FAIL, reason(err))
		return
	}
	s.SetName(name)
	s.SetPhase(dentcp.InLobby)
	dentcp.Debug.Printf("%s logged in", s)
	s.Send(dentcp.LOGIN_OK, name)
}

// CreateRoom registers a waiting room with the creator in the first
// slot.
func (l *Lobby) CreateRoom(s *dentcp.Session, player, room string) {
	if player != s.Name() {
		s.Send(dentcp.ROOM_FAIL, "player name mismatch")
		return
	}
	if s.Room() != "" {
		s.Send(dentcp.ROOM_FAIL, "already in a room")
		return
	}
	if !validName(room) {
		s.Send(dentcp.ROOM_FAIL, "invalid room name")
		return
	}

	rm, err := l.reg.AddRoom(room, player, l.conf.Game.MaxRooms)
	if err != nil {
		s.Send(dentcp.ROOM_FAIL, reason(err))
		return
	}
	if _, _, err := rm.Join(player); err != nil {
		panic(fmt.Sprintf("Fresh room rejected its creator: %s", err))
	}
	s.SetRoom(room)
	s.SetPhase(dentcp.InRoomWaiting)
	dentcp.Debug.Printf("%s created %s", s, rm)
	s.Send(dentcp.ROOM_CREATED, room)
}

// JoinRoom reserves a slot and, on the second join, starts the game.
func (l *Lobby) JoinRoom(s *dentcp.Session, player, room string) {
	if player != s.Name() {
		s.Send(dentcp.ROOM_FAIL, "player name mismatch")
		return
	}
	if s.Room() != "" {
		s.Send(dentcp.ROOM_FAIL, "already in a room")
		return
	}
	rm := l.reg.Room(room)
	if rm == nil {
		s.Send(dentcp.ROOM_FAIL, "no such room")
		return
	}

	occupants, started, err := rm.Join(player)
	switch {
	case err == nil:
		// fallthrough to the replies below
	case errors.Is(err, errRoomFull):
		s.Send(dentcp.ROOM_FULL, room)
		return
	default:
		s.Send(dentcp.ROOM_FAIL, reason(err))
		return
	}

	s.SetRoom(room)
	if !started {
		s.SetPhase(dentcp.InRoomWaiting)
		s.Send(dentcp.ROOM_JOINED, fmt.Sprintf("%s,%d", room, occupants))
		return
	}

	// Second join: both peers enter the game.
	players := rm.Players()
	for _, p := range players {
		if peer := l.reg.Session(p); peer != nil {
			peer.SetPhase(dentcp.InGame)
		}
	}
	dentcp.Debug.Printf("%s started with %q and %q", rm, players[0], players[1])
	start := fmt.Sprintf("%s,%s,%s,%s", room, players[0], players[1], players[0])
	l.broadcast(rm, dentcp.GAME_START, start)
	if state, err := rm.StateJSON(); err == nil {
		l.broadcast(rm, dentcp.GAME_STATE, state)
	}
}

// ListRooms snapshots the room table and answers with ROOMS_LIST.
func (l *Lobby) ListRooms(s *dentcp.Session) {
	buf, err := json.Marshal(l.reg.Infos())
	if err != nil {
		s.Send(dentcp.ERROR, "internal")
		return
	}
	s.Send(dentcp.ROOMS_LIST, string(buf))
}

// Move handles a single-step move.
func (l *Lobby) Move(s *dentcp.Session, room, player string, from, to dentcp.Square) {
	l.play(s, room, player, []dentcp.Square{from, to})
}

// MultiMove handles a capture path; every step is validated against
// the evolving board and the turn flips exactly once.
func (l *Lobby) MultiMove(s *dentcp.Session, room, player string, path []dentcp.Square) {
	l.play(s, room, player, path)
}

func (l *Lobby) play(s *dentcp.Session, room, player string, path []dentcp.Square) {
	if player != s.Name() || room != s.Room() {
		s.Send(dentcp.ROOM_FAIL, "not in that room")
		return
	}
	rm := l.reg.Room(room)
	if rm == nil {
		s.Send(dentcp.ROOM_FAIL, "no such room")
		return
	}

	// The callback below runs under the room lock; snapshot the
	// slots up front instead of re-reading them through the room.
	players := rm.Players()
	err := rm.Play(player, path, func(move *dentcp.Move, state, winner string, over bool) {
		l.sendAll(players, dentcp.GAME_STATE, state)
		if over {
			l.sendAll(players, dentcp.GAME_END,
				fmt.Sprintf("%s,%s", winner, "all_pieces_captured"))
		}
	})
	switch {
	case err == nil:
		// The room has reached its terminal state; release the
		// players back into the lobby.
		if rm.State() == FINISHED {
			l.release(rm)
		}
	case errors.Is(err, dentcp.ErrInvalidMove):
		s.Send(dentcp.INVALID_MOVE, reason(err))
	case errors.Is(err, dentcp.ErrRoom):
		s.Send(dentcp.ROOM_FAIL, reason(err))
	default:
		dentcp.Debug.Printf("Unreachable: %s", err)
		s.Send(dentcp.ERROR, "internal")
	}
}

// LeaveRoom terminates the room regardless of game state.
func (l *Lobby) LeaveRoom(s *dentcp.Session, room, player string) {
	if player != s.Name() || room != s.Room() {
		s.Send(dentcp.ROOM_FAIL, "not in that room")
		return
	}
	rm := l.reg.Room(room)
	if rm == nil {
		s.Send(dentcp.ROOM_FAIL, "no such room")
		return
	}

	prev, changed := rm.Finish()
	if !changed {
		l.release(rm)
		return
	}
	dentcp.Debug.Printf("%s left %s", s, rm)
	if opp := rm.Opponent(player); opp != "" {
		if peer := l.reg.Session(opp); peer != nil {
			peer.Send(dentcp.ROOM_LEFT, fmt.Sprintf("%s,%s", room, player))
			if prev == ACTIVE || prev == PAUSED {
				peer.Send(dentcp.GAME_END,
					fmt.Sprintf("%s,%s", opp, "opponent_left"))
			}
		}
	}
	l.release(rm)
}

// Disconnected routes a transport loss: an active game pauses and
// waits for the player to come back; everything else just leaves
// the session in its grace period.
func (l *Lobby) Disconnected(s *dentcp.Session) {
	name := s.Name()
	if name == "" {
		// Never logged in; nothing to preserve.
		s.SetState(dentcp.Removed)
		return
	}
	dentcp.Debug.Printf("%s disconnected", s)

	room := s.Room()
	if room == "" {
		return
	}
	rm := l.reg.Room(room)
	if rm == nil || !rm.Pause(name) {
		return
	}
	if opp := rm.Opponent(name); opp != "" {
		if peer := l.reg.Session(opp); peer != nil {
			peer.Send(dentcp.PLAYER_DISCONNECTED, fmt.Sprintf("%s,%s", room, name))
			peer.Send(dentcp.GAME_PAUSED, room)
		}
	}
}

// Kicked force-closes a session whose violation counter crossed its
// limit.  Abuse forfeits the reconnect grace: the session is removed
// immediately and an ongoing game ends in the opponent's favor.
func (l *Lobby) Kicked(s *dentcp.Session, why string) {
	s.Send(dentcp.ERROR, why)

	name := s.Name()
	if room := s.Room(); room != "" {
		if rm := l.reg.Room(room); rm != nil {
			prev, _ := rm.Finish()
			if opp := rm.Opponent(name); opp != "" {
				if peer := l.reg.Session(opp); peer != nil {
					peer.Send(dentcp.ROOM_LEFT, fmt.Sprintf("%s,%s", room, name))
					if prev == ACTIVE || prev == PAUSED {
						peer.Send(dentcp.GAME_END,
							fmt.Sprintf("%s,%s", opp, "opponent_kicked"))
					}
				}
			}
			l.release(rm)
		}
	}
	if name != "" {
		l.reg.RemoveSession(name)
	}
	s.SetState(dentcp.Removed)
	dentcp.Debug.Printf("%s kicked: %s", s, why)
	s.Kill()
}

// Rooms answers the web interface with the same snapshot that backs
// ROOMS_LIST.
func (l *Lobby) Rooms() []dentcp.RoomInfo {
	return l.reg.Infos()
}

// broadcast sends one frame to both occupants of RM.  It must not be
// called while the room lock is held; sendAll exists for that case.
func (l *Lobby) broadcast(rm *Room, op dentcp.Op, data string) {
	l.sendAll(rm.Players(), op, data)
}

func (l *Lobby) sendAll(players [2]string, op dentcp.Op, data string) {
	for _, p := range players {
		if p == "" {
			continue
		}
		if peer := l.reg.Session(p); peer != nil {
			peer.Send(op, data)
		}
	}
}

// release puts both occupants of a finished room back into the
// lobby.  The room itself stays in the table until the next sweep.
func (l *Lobby) release(rm *Room) {
	for _, p := range rm.Players() {
		if p == "" {
			continue
		}
		peer := l.reg.Session(p)
		if peer == nil || peer.Room() != rm.Name() {
			continue
		}
		peer.SetRoom("")
		if peer.Phase() == dentcp.InGame || peer.Phase() == dentcp.InRoomWaiting {
			peer.SetPhase(dentcp.InLobby)
		}
	}
}
