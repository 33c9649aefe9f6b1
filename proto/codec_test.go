// Frame Codec Tests
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
	"bytes"
	"io"
	"strings"
	"testing"

	"go-dentcp"
)

func TestSerialize(t *testing.T) {
	for i, test := range []struct {
		op   dentcp.Op
		data string
		want string
	}{
		{dentcp.LOGIN, "john", "DENTCP|01|0004|john\n"},
		{dentcp.LOGIN_OK, "john", "DENTCP|02|0004|john\n"},
		{dentcp.CREATE_ROOM, "john,r1", "DENTCP|04|0007|john,r1\n"},
		{dentcp.PING, "", "DENTCP|16|0000|\n"},
		{dentcp.ROOM_CREATED, "r1", "DENTCP|20|0002|r1\n"},
		{dentcp.ERROR, "internal", "DENTCP|500|0008|internal\n"},
	} {
		buf, err := Serialize(test.op, test.data)
		if err != nil {
			t.Errorf("test %d: unexpected error: %s", i, err)
			continue
		}
		if string(buf) != test.want {
			t.Errorf("test %d: got %q, expected %q", i, buf, test.want)
		}
	}
}

func TestSerializeRefusesOversize(t *testing.T) {
	if _, err := Serialize(dentcp.GAME_STATE, strings.Repeat("x", MaxData+1)); err == nil {
		t.Error("expected an error for an oversized payload")
	}
	if _, err := Serialize(dentcp.GAME_STATE, "a\nb"); err == nil {
		t.Error("expected an error for an embedded terminator")
	}
}

func TestRoundTrip(t *testing.T) {
	for op := range map[dentcp.Op]bool{
		dentcp.LOGIN: true, dentcp.GAME_STATE: true, dentcp.PONG: true,
		dentcp.MULTI_MOVE: true, dentcp.ERROR: true,
	} {
		for _, data := range []string{"", "x", "john,r1", strings.Repeat("y", MaxData)} {
			buf, err := Serialize(op, data)
			if err != nil {
				t.Fatal(err)
			}
			gotOp, gotData, verr := Parse(bytes.TrimSuffix(buf, []byte("\n")))
			if verr != nil {
				t.Fatalf("%s/%d bytes: parse failed: %s", op, len(data), verr)
			}
			if gotOp != op || gotData != data {
				t.Errorf("round trip mismatch: %s/%q became %s/%q",
					op, data, gotOp, gotData)
			}
		}
	}
}

func TestParseFailures(t *testing.T) {
	for i, test := range []struct {
		line   string
		reason Reason
	}{
		{"XENTCP|01|0004|john", InvalidPrefix},
		{"", InvalidPrefix},
		{"DENTCP", InvalidFormat},
		{"DENTCP|", InvalidFormat},
		{"DENTCP|xx|0004|john", InvalidFormat},
		{"DENTCP|1|0004|john", InvalidFormat},
		{"DENTCP|0001|0004|john", InvalidFormat},
		{"DENTCP|501|0004|john", InvalidFormat},
		{"DENTCP|01|004|john", InvalidFormat},
		{"DENTCP|01|00x4|john", InvalidFormat},
		{"DENTCP|01|0004,john", InvalidFormat},
		{"DENTCP|99|0004|john", InvalidOpcode},
		{"DENTCP|01|9999|john", InvalidLength},
		{"DENTCP|01|0005|john", DataMismatch},
		{"DENTCP|01|0003|john", DataMismatch},
	} {
		_, _, err := Parse([]byte(test.line))
		if err == nil {
			t.Errorf("test %d: expected a failure for %q", i, test.line)
			continue
		}
		if err.Reason != test.reason {
			t.Errorf("test %d: got %s, expected %s for %q",
				i, err.Reason, test.reason, test.line)
		}
	}
}

func TestLineReader(t *testing.T) {
	src := strings.NewReader("one\ntwo\nthree\n")
	lr := NewLineReader(src, 16)

	for _, want := range []string{"one", "two", "three"} {
		line, err := lr.Next()
		if err != nil {
			t.Fatal(err)
		}
		if string(line) != want {
			t.Errorf("got %q, expected %q", line, want)
		}
	}
	if _, err := lr.Next(); err == nil {
		t.Error("expected an error at the end of input")
	}
}

func TestLineReaderOverflow(t *testing.T) {
	long := strings.Repeat("x", 64)
	src := strings.NewReader(long + "\nafter\n")
	lr := NewLineReader(src, 16)

	_, err := lr.Next()
	verr, ok := err.(*ViolationError)
	if !ok || verr.Reason != BufferOverflow {
		t.Fatalf("expected a buffer overflow, got %v", err)
	}

	// The overlong line is dropped whole; the next one survives.
	line, err := lr.Next()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "after" {
		t.Errorf("got %q, expected %q", line, "after")
	}
}

func TestLineReaderSplitReads(t *testing.T) {
	src := iotest{parts: []string{"DENTCP|01|", "0004|jo", "hn\n"}}
	lr := NewLineReader(&src, MaxLine)

	line, err := lr.Next()
	if err != nil {
		t.Fatal(err)
	}
	op, data, verr := Parse(line)
	if verr != nil {
		t.Fatal(verr)
	}
	if op != dentcp.LOGIN || data != "john" {
		t.Errorf("got %s/%q", op, data)
	}
}

// iotest feeds its parts one Read call at a time.
type iotest struct {
	parts []string
}

func (s *iotest) Read(p []byte) (int, error) {
	if len(s.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.parts[0])
	if n == len(s.parts[0]) {
		s.parts = s.parts[1:]
	} else {
		s.parts[0] = s.parts[0][n:]
	}
	return n, nil
}
