// Shared State
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

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-dentcp"
)

type Manager interface {
	fmt.Stringer
	Start(*State, *Conf)
	Shutdown()
}

// Lobby is the game-side half of the server: the registry of
// sessions and rooms together with every operation the dispatcher
// can route to it.  Handlers reply to the peers themselves; the
// return-free signatures keep the protocol layer free of game
// knowledge.
type Lobby interface {
	Manager

	Login(s *dentcp.Session, name string)
	CreateRoom(s *dentcp.Session, player, room string)
	JoinRoom(s *dentcp.Session, player, room string)
	LeaveRoom(s *dentcp.Session, room, player string)
	ListRooms(s *dentcp.Session)
	Move(s *dentcp.Session, room, player string, from, to dentcp.Square)
	MultiMove(s *dentcp.Session, room, player string, path []dentcp.Square)

	// Reconnect validates a RECONNECT_REQUEST from a fresh
	// transport and, on success, returns the preserved session the
	// connection owner must adopt.  Replies are sent either way.
	Reconnect(conn dentcp.Client, room, player string) *dentcp.Session

	// Disconnected routes a transport loss; the lobby decides
	// between pause, forfeit and removal.
	Disconnected(s *dentcp.Session)

	// Kicked force-closes a session whose violation counter
	// crossed its limit, reporting REASON to the peer first.
	Kicked(s *dentcp.Session, reason string)

	// Rooms snapshots the room table for ROOMS_LIST and the web
	// interface.
	Rooms() []dentcp.RoomInfo
}

type State struct {
	Context context.Context
	Kill    context.CancelFunc
	Running bool

	Lobby    Lobby
	Managers []Manager
}

func MakeState() *State {
	ctx, kill := context.WithCancel(context.Background())
	return &State{
		Context: ctx,
		Kill:    kill,
	}
}

func (st *State) Register(m Manager) {
	if st.Running {
		panic(fmt.Sprintf("Late register: %#v", m))
	}

	if l, ok := m.(Lobby); ok {
		st.Lobby = l
	}
	st.Managers = append(st.Managers, m)
}

// Start launches every registered manager and blocks until an
// interrupt, a termination request or an internal shutdown, then
// walks the managers down in reverse order.
func (st *State) Start(c *Conf) {
	if st.Lobby == nil {
		panic("No lobby registered")
	}

	for _, m := range st.Managers {
		log.Printf("Starting %s", m)
		go m.Start(st, c)
	}
	st.Running = true

	intr := make(chan os.Signal, 1)
	signal.Notify(intr, os.Interrupt, syscall.SIGTERM)
	select {
	case <-intr:
		log.Println("Caught interrupt")
	case <-st.Context.Done():
		log.Println("Requested shutdown")
	}
	st.Kill()

	done := make(chan struct{})
	go func() {
		dentcp.Debug.Println("Waiting for managers to shutdown...")
		for i := len(st.Managers) - 1; i >= 0; i-- {
			m := st.Managers[i]
			log.Printf("Shutting %s down", m)
			m.Shutdown()
		}
		done <- struct{}{}
	}()

	select {
	case <-intr:
		log.Println("Forced shutdown")
	case <-done:
		log.Println("Shutting down regularly")
	}
}
