// Phase-gated Dispatch Tests
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
	"reflect"
	"testing"

	"go-dentcp"
)

func TestWhitelist(t *testing.T) {
	allowed := map[dentcp.Phase][]dentcp.Op{
		dentcp.NotLoggedIn: {
			dentcp.LOGIN, dentcp.PING, dentcp.PONG,
			dentcp.RECONNECT_REQUEST, dentcp.ERROR,
		},
		dentcp.InLobby: {
			dentcp.CREATE_ROOM, dentcp.JOIN_ROOM, dentcp.LIST_ROOMS,
			dentcp.PING, dentcp.PONG, dentcp.RECONNECT_REQUEST, dentcp.ERROR,
		},
		dentcp.InRoomWaiting: {
			dentcp.LEAVE_ROOM, dentcp.JOIN_ROOM, dentcp.LIST_ROOMS,
			dentcp.PING, dentcp.PONG, dentcp.RECONNECT_REQUEST, dentcp.ERROR,
		},
		dentcp.InGame: {
			dentcp.MOVE, dentcp.MULTI_MOVE, dentcp.LEAVE_ROOM,
			dentcp.LIST_ROOMS, dentcp.PING, dentcp.PONG,
			dentcp.RECONNECT_REQUEST, dentcp.ERROR,
		},
	}
	all := []dentcp.Op{
		dentcp.LOGIN, dentcp.LOGIN_OK, dentcp.LOGIN_FAIL,
		dentcp.CREATE_ROOM, dentcp.JOIN_ROOM, dentcp.ROOM_JOINED,
		dentcp.ROOM_FULL, dentcp.ROOM_FAIL, dentcp.GAME_START,
		dentcp.MOVE, dentcp.INVALID_MOVE, dentcp.GAME_STATE,
		dentcp.GAME_END, dentcp.LEAVE_ROOM, dentcp.ROOM_LEFT,
		dentcp.PING, dentcp.PONG, dentcp.LIST_ROOMS, dentcp.ROOMS_LIST,
		dentcp.ROOM_CREATED, dentcp.MULTI_MOVE,
		dentcp.PLAYER_DISCONNECTED, dentcp.PLAYER_RECONNECTING,
		dentcp.PLAYER_RECONNECTED, dentcp.RECONNECT_REQUEST,
		dentcp.RECONNECT_OK, dentcp.RECONNECT_FAIL,
		dentcp.GAME_PAUSED, dentcp.GAME_RESUMED, dentcp.ERROR,
	}

	for phase, ops := range allowed {
		grant := make(map[dentcp.Op]bool, len(ops))
		for _, op := range ops {
			grant[op] = true
		}
		for _, op := range all {
			if got := Allowed(phase, op); got != grant[op] {
				t.Errorf("%s/%s: got %v, expected %v",
					phase, op, got, grant[op])
			}
		}
	}
}

func TestMultiMove(t *testing.T) {
	path, room, player, err := multiMove("r1,john,3,5,1,3,3,1,5")
	if err != nil {
		t.Fatal(err)
	}
	if room != "r1" || player != "john" {
		t.Errorf("got %q/%q", room, player)
	}
	want := []dentcp.Square{{Row: 5, Col: 1}, {Row: 3, Col: 3}, {Row: 1, Col: 5}}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("got %v, expected %v", path, want)
	}

	for _, bad := range []string{
		"",
		"r1,john",
		"r1,john,1,5,1",
		"r1,john,2,5,1,3",
		"r1,john,2,5,1,3,3,1,5",
		"r1,john,x,5,1,3,3",
		"r1,john,2,5,a,3,3",
		",john,2,5,1,3,3",
	} {
		if _, _, _, err := multiMove(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}
