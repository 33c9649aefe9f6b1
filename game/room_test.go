// Room State Machine Tests
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
	"errors"
	"testing"

	"go-dentcp"
)

func TestRoomLifecycle(t *testing.T) {
	rm := MakeRoom(1, "r1", "john")
	if rm.State() != WAITING {
		t.Fatalf("fresh room is %s", rm.State())
	}

	occ, started, err := rm.Join("john")
	if err != nil || occ != 1 || started {
		t.Fatalf("first join: %d/%v/%v", occ, started, err)
	}
	if _, _, err := rm.Join("john"); err == nil {
		t.Fatal("double join must fail")
	}

	occ, started, err = rm.Join("ann")
	if err != nil || occ != 2 || !started {
		t.Fatalf("second join: %d/%v/%v", occ, started, err)
	}
	if rm.State() != ACTIVE {
		t.Fatalf("room is %s after the second join", rm.State())
	}

	g := rm.Game()
	if g.Player1 != "john" || g.Player2 != "ann" || g.Current != "john" {
		t.Fatalf("unexpected game seed: %+v", g)
	}

	if _, _, err := rm.Join("bob"); !errors.Is(err, errRoomFull) {
		t.Fatalf("expected the room to be full, got %v", err)
	}
}

func TestRoomTurnAlternation(t *testing.T) {
	rm := MakeRoom(1, "r1", "john")
	rm.Join("john")
	rm.Join("ann")

	// White opens; after the committed move the turn belongs to
	// the non-mover.
	if _, _, _, err := rm.Apply("ann", []dentcp.Square{{Row: 2, Col: 1}, {Row: 3, Col: 2}}); err == nil {
		t.Fatal("moving out of turn must fail")
	}
	if _, _, _, err := rm.Apply("john", []dentcp.Square{{Row: 5, Col: 2}, {Row: 4, Col: 3}}); err != nil {
		t.Fatal(err)
	}
	if rm.Game().Current != "ann" {
		t.Fatalf("turn belongs to %q", rm.Game().Current)
	}
	if _, _, _, err := rm.Apply("ann", []dentcp.Square{{Row: 2, Col: 1}, {Row: 3, Col: 2}}); err != nil {
		t.Fatal(err)
	}
	if rm.Game().Current != "john" {
		t.Fatalf("turn belongs to %q", rm.Game().Current)
	}

	// A rejected move preserves the turn.
	if _, _, _, err := rm.Apply("john", []dentcp.Square{{Row: 5, Col: 4}, {Row: 5, Col: 6}}); err == nil {
		t.Fatal("non-diagonal move must fail")
	}
	if rm.Game().Current != "john" {
		t.Fatalf("turn belongs to %q after a rejected move", rm.Game().Current)
	}
}

func TestRoomPauseResume(t *testing.T) {
	rm := MakeRoom(1, "r1", "john")
	rm.Join("john")
	rm.Join("ann")

	if !rm.Pause("john") {
		t.Fatal("active room must pause")
	}
	if rm.Pause("ann") {
		t.Fatal("paused room must not pause again")
	}

	// Moves are rejected while paused, and the turn survives.
	_, _, _, err := rm.Apply("john", []dentcp.Square{{Row: 5, Col: 2}, {Row: 4, Col: 3}})
	if !errors.Is(err, dentcp.ErrInvalidMove) {
		t.Fatalf("expected a rejection, got %v", err)
	}

	if rm.Resume("ann") {
		t.Fatal("only the dropped player resumes the room")
	}
	if !rm.Resume("john") {
		t.Fatal("expected the room to resume")
	}
	if rm.State() != ACTIVE || rm.Game().Current != "john" {
		t.Fatalf("bad state after resume: %s/%q", rm.State(), rm.Game().Current)
	}
}

func TestRoomFinishIsTerminal(t *testing.T) {
	rm := MakeRoom(1, "r1", "john")
	rm.Join("john")
	rm.Join("ann")

	prev, changed := rm.Finish()
	if !changed || prev != ACTIVE {
		t.Fatalf("finish: %s/%v", prev, changed)
	}
	if _, changed := rm.Finish(); changed {
		t.Fatal("finish must be terminal")
	}
	if _, _, err := rm.Join("bob"); err == nil {
		t.Fatal("finished room must not accept joins")
	}
	if rm.Pause("john") || rm.Resume("john") {
		t.Fatal("finished room must not pause or resume")
	}
}
