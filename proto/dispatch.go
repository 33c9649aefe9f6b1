// Phase-gated Dispatch
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

package proto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-dentcp"
)

// whitelist grants operations by phase.  Anything not listed is
// rejected and charged as a violation.
var whitelist = map[dentcp.Phase]map[dentcp.Op]bool{
	dentcp.NotLoggedIn: set(
		dentcp.LOGIN, dentcp.PING, dentcp.PONG,
		dentcp.RECONNECT_REQUEST, dentcp.ERROR),
	dentcp.InLobby: set(
		dentcp.CREATE_ROOM, dentcp.JOIN_ROOM, dentcp.LIST_ROOMS,
		dentcp.PING, dentcp.PONG,
		dentcp.RECONNECT_REQUEST, dentcp.ERROR),
	dentcp.InRoomWaiting: set(
		dentcp.LEAVE_ROOM, dentcp.JOIN_ROOM, dentcp.LIST_ROOMS,
		dentcp.PING, dentcp.PONG,
		dentcp.RECONNECT_REQUEST, dentcp.ERROR),
	dentcp.InGame: set(
		dentcp.MOVE, dentcp.MULTI_MOVE, dentcp.LEAVE_ROOM,
		dentcp.LIST_ROOMS, dentcp.PING, dentcp.PONG,
		dentcp.RECONNECT_REQUEST, dentcp.ERROR),
}

func set(ops ...dentcp.Op) map[dentcp.Op]bool {
	m := make(map[dentcp.Op]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// Allowed reports whether OP may be dispatched in PHASE.
func Allowed(phase dentcp.Phase, op dentcp.Op) bool {
	return whitelist[phase][op]
}

// fields destructs a comma-separated payload into exactly N parts.
func fields(data string, n int) ([]string, error) {
	parts := strings.Split(data, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: expected %d fields, got %d",
			dentcp.ErrProtocol, n, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty field", dentcp.ErrProtocol)
		}
	}
	return parts, nil
}

// square parses a coordinate pair.
func square(row, col string) (dentcp.Square, error) {
	r, err := strconv.Atoi(row)
	if err != nil {
		return dentcp.Square{}, fmt.Errorf("%w: bad coordinate %q", dentcp.ErrProtocol, row)
	}
	c, err := strconv.Atoi(col)
	if err != nil {
		return dentcp.Square{}, fmt.Errorf("%w: bad coordinate %q", dentcp.ErrProtocol, col)
	}
	return dentcp.Square{Row: r, Col: c}, nil
}

// interpret routes one decoded message.  The session's phase gates
// what is admissible; malformed payloads of admissible operations
// are charged like whitelist rejections.
func (cli *Client) interpret(op dentcp.Op, data string) {
	sess := cli.session()

	if !Allowed(sess.Phase(), op) {
		cli.violation(dentcp.ViolationPhase,
			fmt.Sprintf("operation %s not allowed in %s", op, sess.Phase()))
		return
	}

	lobby := cli.st.Lobby
	switch op {
	case dentcp.PING:
		cli.Send(dentcp.PONG, "")
	case dentcp.PONG:
		sess.ObservePong(time.Now())
	case dentcp.ERROR:
		// The peer reports a problem on its side; there is
		// nothing to answer.
		dentcp.Debug.Printf("%s reported: %s", cli, data)
	case dentcp.LOGIN:
		lobby.Login(sess, strings.TrimSpace(data))
	case dentcp.CREATE_ROOM:
		parts, err := fields(data, 2)
		if err != nil {
			cli.violation(dentcp.ViolationPhase, err.Error())
			return
		}
		lobby.CreateRoom(sess, parts[0], parts[1])
	case dentcp.JOIN_ROOM:
		parts, err := fields(data, 2)
		if err != nil {
			cli.violation(dentcp.ViolationPhase, err.Error())
			return
		}
		lobby.JoinRoom(sess, parts[0], parts[1])
	case dentcp.LEAVE_ROOM:
		parts, err := fields(data, 2)
		if err != nil {
			cli.violation(dentcp.ViolationPhase, err.Error())
			return
		}
		lobby.LeaveRoom(sess, parts[0], parts[1])
	case dentcp.LIST_ROOMS:
		lobby.ListRooms(sess)
	case dentcp.MOVE:
		parts, err := fields(data, 6)
		if err != nil {
			cli.violation(dentcp.ViolationPhase, err.Error())
			return
		}
		from, err := square(parts[2], parts[3])
		if err != nil {
			cli.violation(dentcp.ViolationPhase, err.Error())
			return
		}
		to, err := square(parts[4], parts[5])
		if err != nil {
			cli.violation(dentcp.ViolationPhase, err.Error())
			return
		}
		lobby.Move(sess, parts[0], parts[1], from, to)
	case dentcp.MULTI_MOVE:
		path, room, player, err := multiMove(data)
		if err != nil {
			cli.violation(dentcp.ViolationPhase, err.Error())
			return
		}
		lobby.MultiMove(sess, room, player, path)
	case dentcp.RECONNECT_REQUEST:
		var room, player string
		switch parts := strings.Split(data, ","); len(parts) {
		case 1:
			player = parts[0]
		case 2:
			room, player = parts[0], parts[1]
		default:
			cli.violation(dentcp.ViolationPhase, "malformed reconnect request")
			return
		}
		if player == "" {
			cli.violation(dentcp.ViolationPhase, "malformed reconnect request")
			return
		}
		if preserved := lobby.Reconnect(cli, room, player); preserved != nil {
			cli.adopt(preserved)
		}
	default:
		// Parse admitted the opcode, so the whitelist must be
		// out of sync with the protocol.
		panic(fmt.Sprintf("Unhandled operation %s", op))
	}
}

// multiMove decodes "room,player,k,r1,c1,...,rk,ck".
func multiMove(data string) (path []dentcp.Square, room, player string, err error) {
	parts := strings.Split(data, ",")
	if len(parts) < 3 {
		return nil, "", "", fmt.Errorf("%w: malformed multi move", dentcp.ErrProtocol)
	}
	room, player = parts[0], parts[1]
	if room == "" || player == "" {
		return nil, "", "", fmt.Errorf("%w: malformed multi move", dentcp.ErrProtocol)
	}
	k, err := strconv.Atoi(parts[2])
	if err != nil || k < 2 {
		return nil, "", "", fmt.Errorf("%w: bad path length", dentcp.ErrProtocol)
	}
	if len(parts) != 3+2*k {
		return nil, "", "", fmt.Errorf("%w: path length mismatch", dentcp.ErrProtocol)
	}
	for i := 0; i < k; i++ {
		sq, err := square(parts[3+2*i], parts[4+2*i])
		if err != nil {
			return nil, "", "", err
		}
		path = append(path, sq)
	}
	return path, room, player, nil
}
