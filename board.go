// Checkers Board Implementation
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
	"bytes"
	"fmt"
)

// Size is the board edge length.
const Size = 8

// Cell is the contents of one board square, using the wire encoding.
type Cell uint8

const (
	EMPTY      Cell = 0
	WHITE_MAN  Cell = 1
	WHITE_KING Cell = 2
	BLACK_MAN  Cell = 3
	BLACK_KING Cell = 4
)

// Color represents a side of the board
type Color bool

const (
	// White moves toward row 0 and belongs to the first joiner
	White Color = false
	// Black moves toward row 7
	Black Color = true
)

// String returns a string representation for a color
func (c Color) String() string {
	if c {
		return "Black"
	}
	return "White"
}

// Color returns the owning color of a cell, or false for an empty
// cell.
func (c Cell) Color() (Color, bool) {
	switch c {
	case WHITE_MAN, WHITE_KING:
		return White, true
	case BLACK_MAN, BLACK_KING:
		return Black, true
	default:
		return White, false
	}
}

// King reports whether the cell holds a promoted piece.
func (c Cell) King() bool {
	return c == WHITE_KING || c == BLACK_KING
}

// Square addresses one board cell.  Rows grow downward from 0 at the
// top.
type Square struct {
	Row, Col int
}

// Valid reports whether the square is on the board.
func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < Size && s.Col >= 0 && s.Col < Size
}

func (s Square) String() string {
	return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
}

// MoveKind classifies a committed move.
type MoveKind uint8

const (
	NormalMove MoveKind = iota
	CaptureMove
	MultiCaptureMove
)

// Move records one committed move: the endpoints, the intermediate
// landing squares, every captured square in order, and whether the
// piece was promoted on landing.
type Move struct {
	From, To Square
	Kind     MoveKind
	Captures []Square
	Path     []Square
	Promoted bool
}

// Board is the fixed 8x8 grid.  Only the dark squares (row+col odd)
// ever hold pieces; light squares are tolerated but never produced.
type Board [Size][Size]Cell

// MakeBoard sets up the initial position: black men on the three top
// rows, white men on the three bottom rows, dark squares only.
func MakeBoard() *Board {
	var b Board
	for row := 0; row < 3; row++ {
		for col := 0; col < Size; col++ {
			if (row+col)%2 == 1 {
				b[row][col] = BLACK_MAN
			}
		}
	}
	for row := Size - 3; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if (row+col)%2 == 1 {
				b[row][col] = WHITE_MAN
			}
		}
	}
	return &b
}

// Copy returns an independent copy of the board.
func (b *Board) Copy() *Board {
	c := *b
	return &c
}

// At returns the cell at SQ.  The caller is responsible for bounds.
func (b *Board) At(sq Square) Cell {
	return b[sq.Row][sq.Col]
}

func (b *Board) set(sq Square, c Cell) {
	b[sq.Row][sq.Col] = c
}

// forward is the row direction a man of COLOR moves in.
func forward(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

// backRank is the promotion row for COLOR.
func backRank(c Color) int {
	if c == White {
		return 0
	}
	return Size - 1
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Step checks a single step FROM -> TO for MOVER against the current
// board, without mutating it.  On success it returns the captured
// square, if the step is a capture.
func (b *Board) Step(mover Color, from, to Square) (*Square, error) {
	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("%w: square out of bounds", ErrInvalidMove)
	}
	if b.At(to) != EMPTY {
		return nil, fmt.Errorf("%w: destination occupied", ErrInvalidMove)
	}
	piece := b.At(from)
	color, ok := piece.Color()
	if !ok {
		return nil, fmt.Errorf("%w: no piece on source square", ErrInvalidMove)
	}
	if color != mover {
		return nil, fmt.Errorf("%w: piece belongs to the opponent", ErrInvalidMove)
	}

	dr, dc := to.Row-from.Row, to.Col-from.Col
	if dr == 0 || dc == 0 || dr != dc && dr != -dc {
		return nil, fmt.Errorf("%w: move is not diagonal", ErrInvalidMove)
	}

	if !piece.King() {
		switch dr * sign(dr) {
		case 1:
			// A simple step must match the man's forward
			// direction; captures may go either way.
			if dr != forward(mover) {
				return nil, fmt.Errorf("%w: men cannot move backwards", ErrInvalidMove)
			}
			return nil, nil
		case 2:
			mid := Square{from.Row + dr/2, from.Col + dc/2}
			victim, ok := b.At(mid).Color()
			if !ok || victim == mover {
				return nil, fmt.Errorf("%w: nothing to capture", ErrInvalidMove)
			}
			return &mid, nil
		default:
			return nil, fmt.Errorf("%w: men move a single square", ErrInvalidMove)
		}
	}

	// A king slides any distance, capturing at most one enemy piece
	// on an otherwise empty diagonal.
	var (
		captured *Square
		rs, cs   = sign(dr), sign(dc)
	)
	for sq := (Square{from.Row + rs, from.Col + cs}); sq != to; sq = (Square{sq.Row + rs, sq.Col + cs}) {
		color, ok := b.At(sq).Color()
		if !ok {
			continue
		}
		if color == mover {
			return nil, fmt.Errorf("%w: own piece in the way", ErrInvalidMove)
		}
		if captured != nil {
			return nil, fmt.Errorf("%w: more than one piece on the diagonal", ErrInvalidMove)
		}
		sq := sq
		captured = &sq
	}
	return captured, nil
}

// Apply validates PATH as a move for MOVER and commits it.  A path of
// two squares is a simple move or a single capture; a longer path is
// a multi-capture where every step must capture and no square may be
// captured twice.  The board is only modified if the whole path is
// legal.
func (b *Board) Apply(mover Color, path []Square) (*Move, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: path too short", ErrInvalidMove)
	}

	var (
		work = b.Copy()
		move = &Move{
			From: path[0],
			To:   path[len(path)-1],
			Path: append([]Square(nil), path[1:len(path)-1]...),
		}
	)
	for i := 1; i < len(path); i++ {
		from, to := path[i-1], path[i]
		captured, err := work.Step(mover, from, to)
		if err != nil {
			return nil, err
		}
		if len(path) > 2 && captured == nil {
			return nil, fmt.Errorf("%w: every step of a multi-capture must capture", ErrInvalidMove)
		}
		if captured != nil {
			for _, prev := range move.Captures {
				if prev == *captured {
					return nil, fmt.Errorf("%w: square captured twice", ErrInvalidMove)
				}
			}
			move.Captures = append(move.Captures, *captured)
			work.set(*captured, EMPTY)
		}

		work.set(to, work.At(from))
		work.set(from, EMPTY)
	}

	// Promotion happens on the final landing square only.
	final := work.At(move.To)
	if !final.King() && move.To.Row == backRank(mover) {
		if mover == White {
			work.set(move.To, WHITE_KING)
		} else {
			work.set(move.To, BLACK_KING)
		}
		move.Promoted = true
	}

	switch len(move.Captures) {
	case 0:
		move.Kind = NormalMove
	case 1:
		if len(path) == 2 {
			move.Kind = CaptureMove
		} else {
			move.Kind = MultiCaptureMove
		}
	default:
		move.Kind = MultiCaptureMove
	}

	*b = *work
	return move, nil
}

// Count returns the number of pieces COLOR has left.
func (b *Board) Count(c Color) (n int) {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if color, ok := b[row][col].Color(); ok && color == c {
				n++
			}
		}
	}
	return n
}

// Over reports whether the game has ended, and who won.  The game
// ends when one color has no pieces left.
func (b *Board) Over() (winner Color, over bool) {
	switch {
	case b.Count(White) == 0:
		return Black, true
	case b.Count(Black) == 0:
		return White, true
	default:
		return White, false
	}
}

// String renders the board row by row for debug output.
func (b *Board) String() string {
	var buf bytes.Buffer
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			fmt.Fprintf(&buf, "%d", b[row][col])
		}
		if row != Size-1 {
			buf.WriteByte('/')
		}
	}
	return buf.String()
}
