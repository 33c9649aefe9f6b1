// Web interface
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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-dentcp"
	"go-dentcp/cmd"
)

// Server exposes a small status surface next to the game port, and
// optionally the websocket transport.
type Server struct {
	conf *cmd.Conf
	srv  *http.Server
}

func MakeServer(conf *cmd.Conf) *Server {
	return &Server{conf: conf}
}

func (*Server) String() string { return "Web Server" }

func (w *Server) Start(st *cmd.State, conf *cmd.Conf) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(rw, "ok")
	})
	mux.HandleFunc("/rooms", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(st.Lobby.Rooms()); err != nil {
			dentcp.Debug.Print(err)
		}
	})
	if conf.Web.WebSocket {
		mux.HandleFunc("/socket", upgrader(st, conf))
	}

	w.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Web.Port),
		Handler: mux,
	}
	if err := w.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		dentcp.Debug.Print(err)
	}
}

func (w *Server) Shutdown() {
	if w.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.srv.Shutdown(ctx); err != nil {
		dentcp.Debug.Print(err)
	}
}
