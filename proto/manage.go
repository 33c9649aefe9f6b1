// TCP interface
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
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"go-dentcp"
	"go-dentcp/cmd"
)

type Listener struct {
	conf   *cmd.Conf
	conn   net.Listener
	port   uint16
	active atomic.Int32
}

func (*Listener) String() string {
	return "TCP Handler"
}

// Init binds the listening socket, unless it is already bound.  Kept
// separate from Start so that the entry point can fail with a proper
// exit status when the port is taken.
func (t *Listener) Init() error {
	if t.conn != nil {
		return nil
	}

	var err error
	tcp := fmt.Sprintf("%s:%d", t.conf.Proto.Addr, t.port)
	t.conn, err = net.Listen("tcp", tcp)
	if err != nil {
		return err
	}
	if t.port == 0 {
		// Extract the port number the operating system bound
		// the listener to, since port 0 is redirected to a
		// "random" open port
		addr := t.conn.Addr().String()
		i := strings.LastIndexByte(addr, ':')
		if i == -1 {
			return fmt.Errorf("invalid address %q", addr)
		}
		port, err := strconv.ParseUint(addr[i+1:], 10, 16)
		if err != nil {
			return err
		}
		t.port = uint16(port)
	}
	return nil
}

func (t *Listener) Start(st *cmd.State, conf *cmd.Conf) {
	if st.Lobby == nil {
		panic("No lobby")
	}
	if err := t.Init(); err != nil {
		dentcp.Debug.Print(err)
		st.Kill()
		return
	}

	dentcp.Debug.Printf("Accepting connections on :%d", t.port)
	for {
		conn, err := t.conn.Accept()
		if err != nil {
			if st.Context.Err() != nil {
				return
			}
			continue
		}

		// The connection cap counts owner tasks, not logins;
		// an over-limit peer is refused before it can spend
		// any server state.
		if uint(t.active.Load()) >= t.conf.Proto.MaxClients {
			cli := MakeClient(conn, st, conf)
			cli.Send(dentcp.ERROR, "server full")
			cli.Kill()
			continue
		}

		t.active.Add(1)
		cli := MakeClient(conn, st, conf)
		go func() {
			defer t.active.Add(-1)
			cli.Connect()
		}()
	}
}

func (t *Listener) Port() uint16 {
	return t.port
}

func (t *Listener) Shutdown() {
	if t.conn == nil {
		return
	}
	if err := t.conn.Close(); err != nil {
		dentcp.Debug.Print(err)
	}
}

func MakeListener(conf *cmd.Conf) *Listener {
	return &Listener{conf: conf, port: uint16(conf.Proto.Port)}
}
