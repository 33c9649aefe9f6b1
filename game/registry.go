// Session and Room Registry
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
	"sort"
	"sync"

	"go-dentcp"
)

// Registry owns the process-wide tables of sessions and rooms.  Each
// table has its own lock, and no method ever holds both: callers
// look one entity up, release, then look the other up and re-check.
// That discipline is what keeps the classic AB/BA deadlock out.
type Registry struct {
	slock    sync.Mutex
	sessions map[string]*dentcp.Session

	rlock  sync.Mutex
	rooms  map[string]*Room
	nextId uint64
}

func MakeRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*dentcp.Session),
		rooms:    make(map[string]*Room),
	}
}

// AddSession registers S under NAME.  Login names are unique for the
// life of the session, including its disconnected grace period.
func (r *Registry) AddSession(name string, s *dentcp.Session) error {
	r.slock.Lock()
	defer r.slock.Unlock()
	if _, ok := r.sessions[name]; ok {
		return fmt.Errorf("%w: Client ID already in use", dentcp.ErrAuth)
	}
	r.sessions[name] = s
	return nil
}

// Session looks a session up by login name.
func (r *Registry) Session(name string) *dentcp.Session {
	r.slock.Lock()
	defer r.slock.Unlock()
	return r.sessions[name]
}

func (r *Registry) RemoveSession(name string) {
	r.slock.Lock()
	defer r.slock.Unlock()
	delete(r.sessions, name)
}

// Sessions snapshots the session table.  The heartbeat monitor
// iterates the snapshot outside the lock.
func (r *Registry) Sessions() []*dentcp.Session {
	r.slock.Lock()
	defer r.slock.Unlock()
	all := make([]*dentcp.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	return all
}

// AddRoom creates and registers a room, respecting the server-wide
// room cap.
func (r *Registry) AddRoom(name, owner string, max uint) (*Room, error) {
	r.rlock.Lock()
	defer r.rlock.Unlock()
	if uint(len(r.rooms)) >= max {
		return nil, fmt.Errorf("%w: room limit reached", dentcp.ErrRoom)
	}
	if _, ok := r.rooms[name]; ok {
		return nil, fmt.Errorf("%w: room name in use", dentcp.ErrRoom)
	}
	r.nextId++
	room := MakeRoom(r.nextId, name, owner)
	r.rooms[name] = room
	return room, nil
}

// Room looks a room up by name.
func (r *Registry) Room(name string) *Room {
	r.rlock.Lock()
	defer r.rlock.Unlock()
	return r.rooms[name]
}

func (r *Registry) RemoveRoom(name string) {
	r.rlock.Lock()
	defer r.rlock.Unlock()
	delete(r.rooms, name)
}

// Rooms snapshots the room table.
func (r *Registry) Rooms() []*Room {
	r.rlock.Lock()
	defer r.rlock.Unlock()
	all := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		all = append(all, room)
	}
	return all
}

// Infos builds the ROOMS_LIST snapshot.  The per-room data is read
// outside the table lock.
func (r *Registry) Infos() []dentcp.RoomInfo {
	rooms := r.Rooms()
	infos := make([]dentcp.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Id < infos[j].Id
	})
	return infos
}
