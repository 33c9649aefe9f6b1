// Websocket interface
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

package web

import (
	"net/http"
	"strings"

	"go-dentcp"
	"go-dentcp/cmd"
	"go-dentcp/proto"

	ws "github.com/gorilla/websocket"
)

// wsrwc is a read-write-closer using websockets.  One websocket text
// message carries one DENTCP frame; the adapter restores the line
// framing the protocol core expects.
type wsrwc struct {
	conn *ws.Conn
	rest []byte
}

// Convert a write call into a Websocket message, dropping the line
// terminator the codec appended.
func (c *wsrwc) Write(p []byte) (int, error) {
	msg := []byte(strings.TrimSuffix(string(p), "\n"))
	if err := c.conn.WriteMessage(ws.TextMessage, msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Convert a read call into a Websocket query, appending a terminator
// per message.
func (c *wsrwc) Read(p []byte) (int, error) {
	if len(c.rest) == 0 {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.rest = append(msg, '\n')
	}
	n := copy(p, c.rest)
	c.rest = c.rest[n:]
	return n, nil
}

func (c *wsrwc) Close() error {
	return c.conn.Close()
}

var accept = ws.Upgrader{
	ReadBufferSize:  proto.MaxLine,
	WriteBufferSize: proto.MaxLine,
	// The browser client is served from another origin; the
	// protocol itself authenticates nothing at upgrade time.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Upgrade a HTTP connection to a WebSocket and hand it to the
// protocol core.
func upgrader(st *cmd.State, conf *cmd.Conf) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := accept.Upgrade(w, r, nil)
		if err != nil {
			dentcp.Debug.Printf("Unable to upgrade connection: %s", err)
			return
		}

		dentcp.Debug.Printf("New websocket connection from %s", r.RemoteAddr)
		cli := proto.MakeClient(&wsrwc{conn: conn}, st, conf)
		go cli.Connect()
	}
}
