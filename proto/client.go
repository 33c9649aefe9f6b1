// Client Communication Management
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
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go-dentcp"
	"go-dentcp/cmd"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client owns one transport.  It reads framed lines, feeds them to
// the codec and the dispatcher, and serializes every outbound write.
// The session it carries may outlive it: on reconnection a new
// Client adopts the preserved session and the old one is gone.
type Client struct {
	conf *cmd.Conf
	st   *cmd.State

	id     uuid.UUID
	iolock sync.Mutex // IO lock
	rwc    io.ReadWriteCloser
	kill   context.CancelFunc
	killed sync.Once

	limiter *rate.Limiter

	slock sync.Mutex // guards sess swap on reconnect
	sess  *dentcp.Session
}

// MakeClient wraps an accepted transport.  The caller is expected to
// run Connect in the connection's owner goroutine.
func MakeClient(rwc io.ReadWriteCloser, st *cmd.State, conf *cmd.Conf) *Client {
	cli := &Client{
		conf:    conf,
		st:      st,
		id:      uuid.New(),
		rwc:     rwc,
		limiter: rate.NewLimiter(rate.Limit(conf.Limit.FrameRate), int(conf.Limit.Burst)),
	}
	cli.sess = dentcp.NewSession(cli, time.Now())
	return cli
}

// String will return a string representation for a client for
// internal use
func (cli *Client) String() string {
	return fmt.Sprintf("%s (%q)", cli.id, cli.session().Name())
}

func (cli *Client) session() *dentcp.Session {
	cli.slock.Lock()
	defer cli.slock.Unlock()
	return cli.sess
}

// adopt swaps the anonymous session for a preserved one after a
// successful reconnect.
func (cli *Client) adopt(s *dentcp.Session) {
	cli.slock.Lock()
	defer cli.slock.Unlock()
	cli.sess = s
}

// Send frames OP and DATA and writes them out.  A write failure
// tears the transport down; the owner loop then routes the loss
// through the disconnect controller.
func (cli *Client) Send(op dentcp.Op, data string) error {
	buf, err := Serialize(op, data)
	if err != nil {
		return err
	}

	cli.iolock.Lock()
	defer cli.iolock.Unlock()

	dentcp.Debug.Println(cli, ">", strings.TrimSuffix(string(buf), "\n"))
	if _, err := cli.rwc.Write(buf); err != nil {
		dentcp.Debug.Printf("Write to %s failed: %s", cli, err)
		cli.Kill()
		return fmt.Errorf("%w: %s", dentcp.ErrTransport, err)
	}
	return nil
}

// Kill tears the transport down; the owner loop notices through the
// failing read.
func (cli *Client) Kill() {
	cli.killed.Do(func() {
		if cli.kill != nil {
			cli.kill()
		}
		cli.rwc.Close()
	})
}

// violation charges KIND against the session and force-closes the
// connection once the kind's limit is reached.  It reports whether
// the client survived.
func (cli *Client) violation(kind dentcp.ViolationKind, reason string) bool {
	var limit uint
	switch kind {
	case dentcp.ViolationCodec:
		limit = cli.conf.Limit.Codec
	case dentcp.ViolationPhase:
		limit = cli.conf.Limit.Phase
	case dentcp.ViolationFlood:
		limit = cli.conf.Limit.Flood
	}

	sess := cli.session()
	count := sess.Charge(kind, time.Now())
	dentcp.Debug.Printf("%s: %s violation %d/%d (%s)", cli, kind, count, limit, reason)
	if count < limit {
		cli.Send(dentcp.ERROR, reason)
		return true
	}

	cli.st.Lobby.Kicked(sess, reason)
	return false
}

// Connect coordinates a client connection.  It owns the read side of
// the transport: every frame the peer sends passes through here, in
// arrival order, until the transport dies or the client is killed.
func (cli *Client) Connect() {
	defer cli.rwc.Close()

	var ctx context.Context
	ctx, cli.kill = context.WithCancel(cli.st.Context)

	// Tear the blocking read down when the client is killed or the
	// server shuts down.
	go func() {
		<-ctx.Done()
		cli.rwc.Close()
	}()

	// A fresh transport has the accept deadline to produce its
	// first frame.
	if conn, ok := cli.rwc.(net.Conn); ok {
		conn.SetReadDeadline(time.Now().Add(cli.conf.Proto.AcceptTimeout))
	}

	reader := NewLineReader(cli.rwc, MaxLine)
	first := true
	for {
		line, err := reader.Next()
		switch err := err.(type) {
		case nil:
			// fallthrough to the frame handling below
		case *ViolationError:
			if !cli.violation(dentcp.ViolationCodec, err.Reason.String()) {
				goto teardown
			}
			continue
		default:
			dentcp.Debug.Printf("Connection to %s lost: %s", cli, err)
			goto teardown
		}

		if first {
			first = false
			if conn, ok := cli.rwc.(net.Conn); ok {
				conn.SetReadDeadline(time.Time{})
			}
		}

		if len(line) == 0 { // Ignore empty lines
			continue
		}
		if !cli.limiter.Allow() {
			if !cli.violation(dentcp.ViolationFlood, "too many frames") {
				goto teardown
			}
			continue
		}

		dentcp.Debug.Println(cli, "<", string(line))
		op, data, verr := Parse(line)
		if verr != nil {
			if !cli.violation(dentcp.ViolationCodec, verr.Reason.String()) {
				goto teardown
			}
			continue
		}

		cli.interpret(op, data)
	}

teardown:
	sess := cli.session()
	if sess.MarkDisconnected(time.Now()) {
		cli.st.Lobby.Disconnected(sess)
	}
	cli.Kill()
	dentcp.Debug.Println("Closed connection to", cli)
}
