// Room State Machine
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
	"sync"

	"go-dentcp"
)

// RoomState tracks the lifecycle of a room.  A room only ever visits
// a subsequence of waiting -> active -> (paused <-> active)* ->
// finished.
type RoomState uint8

const (
	WAITING RoomState = iota
	ACTIVE
	PAUSED
	FINISHED
)

func (s RoomState) String() string {
	switch s {
	case WAITING:
		return "waiting"
	case ACTIVE:
		return "active"
	case PAUSED:
		return "paused"
	case FINISHED:
		return "finished"
	default:
		panic(fmt.Sprintf("Illegal room state: %d", s))
	}
}

// Room is the two-slot container a game runs in.  One mutex guards
// everything inside; the mover check under that mutex is what
// serializes the broadcast of one move against the acceptance of the
// next.
type Room struct {
	mu sync.Mutex

	id       uint64
	name     string
	owner    string
	players  [2]string // players[0] joined first and plays white
	game     *dentcp.Game
	state    RoomState
	pausedBy string // disconnected player while paused
}

// errRoomFull is distinguishable so the join handler can answer with
// ROOM_FULL instead of ROOM_FAIL.
var errRoomFull = fmt.Errorf("%w: room full", dentcp.ErrRoom)

func MakeRoom(id uint64, name, owner string) *Room {
	return &Room{
		id:    id,
		name:  name,
		owner: owner,
		state: WAITING,
	}
}

func (r *Room) String() string {
	return fmt.Sprintf("room %d (%q)", r.id, r.name)
}

func (r *Room) Name() string {
	return r.name
}

// Info reports the public description for ROOMS_LIST.
func (r *Room) Info() dentcp.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return dentcp.RoomInfo{
		Id:      r.id,
		Name:    r.name,
		Players: r.occupants(),
	}
}

func (r *Room) occupants() (n int) {
	for _, p := range r.players {
		if p != "" {
			n++
		}
	}
	return n
}

// State returns the current room state.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Players returns the current slot assignment.
func (r *Room) Players() [2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players
}

// Holds reports whether PLAYER occupies a slot.
func (r *Room) Holds(player string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[0] == player || r.players[1] == player
}

// Opponent returns the other occupant, or the empty string.
func (r *Room) Opponent(player string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch player {
	case r.players[0]:
		return r.players[1]
	case r.players[1]:
		return r.players[0]
	default:
		return ""
	}
}

// Join reserves a slot for PLAYER.  When the second slot fills the
// game is seeded: the first joiner plays white and has the first
// turn.  It returns the occupant count after the join and whether
// the game just started.
func (r *Room) Join(player string) (occupants int, started bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != WAITING {
		if r.occupants() == 2 {
			return 0, false, errRoomFull
		}
		return 0, false, fmt.Errorf("%w: room not joinable", dentcp.ErrRoom)
	}
	if r.players[0] == player || r.players[1] == player {
		return 0, false, fmt.Errorf("%w: already in this room", dentcp.ErrRoom)
	}
	switch {
	case r.players[0] == "":
		r.players[0] = player
	case r.players[1] == "":
		r.players[1] = player
	default:
		return 0, false, errRoomFull
	}

	if r.occupants() == 2 {
		r.game = dentcp.MakeGame(r.players[0], r.players[1])
		r.state = ACTIVE
		return 2, true, nil
	}
	return 1, false, nil
}

// Game returns the embedded game.  The caller must not mutate it;
// mutation goes through Apply.
func (r *Room) Game() *dentcp.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game
}

// StateJSON renders the game for a GAME_STATE broadcast.
func (r *Room) StateJSON() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game == nil {
		return "", fmt.Errorf("%w: no game in %s", dentcp.ErrInternal, r)
	}
	return r.game.StateJSON()
}

// Apply validates and commits PATH for PLAYER, flips the turn, and
// checks for termination.  The turn flips exactly once regardless of
// the path length.
func (r *Room) Apply(player string, path []dentcp.Square) (move *dentcp.Move, winner string, over bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(player, path)
}

// Play commits PATH and invokes REPLY with the rendered state while
// the room is still locked, so that the state broadcast caused by a
// move reaches both peers before the next move is accepted.
func (r *Room) Play(player string, path []dentcp.Square, reply func(move *dentcp.Move, state, winner string, over bool)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	move, winner, over, err := r.applyLocked(player, path)
	if err != nil {
		return err
	}
	state, err := r.game.StateJSON()
	if err != nil {
		return err
	}
	reply(move, state, winner, over)
	return nil
}

func (r *Room) applyLocked(player string, path []dentcp.Square) (move *dentcp.Move, winner string, over bool, err error) {
	switch r.state {
	case PAUSED:
		return nil, "", false, fmt.Errorf("%w: game paused", dentcp.ErrInvalidMove)
	case ACTIVE:
		// fine
	default:
		return nil, "", false, fmt.Errorf("%w: no active game", dentcp.ErrRoom)
	}
	if r.game.Current != player {
		return nil, "", false, fmt.Errorf("%w: not your turn", dentcp.ErrInvalidMove)
	}
	color, ok := r.game.Color(player)
	if !ok {
		return nil, "", false, fmt.Errorf("%w: not a player of %s", dentcp.ErrRoom, r)
	}

	move, err = r.game.Board.Apply(color, path)
	if err != nil {
		return nil, "", false, err
	}
	r.game.Flip()

	if winnerColor, done := r.game.Board.Over(); done {
		if winnerColor == dentcp.White {
			winner = r.game.Player1
		} else {
			winner = r.game.Player2
		}
		r.game.Active = false
		r.state = FINISHED
		return move, winner, true, nil
	}
	return move, "", false, nil
}

// Pause freezes an active room because PLAYER lost its transport.
func (r *Room) Pause(player string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ACTIVE {
		return false
	}
	r.state = PAUSED
	r.pausedBy = player
	return true
}

// Resume unfreezes a paused room after PLAYER reattached.  The turn
// pointer is untouched.
func (r *Room) Resume(player string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != PAUSED || r.pausedBy != player {
		return false
	}
	r.state = ACTIVE
	r.pausedBy = ""
	return true
}

// Finish moves the room to its terminal state.  It returns the
// state the room was in and whether this call did the transition.
func (r *Room) Finish() (RoomState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == FINISHED {
		return FINISHED, false
	}
	prev := r.state
	r.state = FINISHED
	if r.game != nil {
		r.game.Active = false
	}
	return prev, true
}
