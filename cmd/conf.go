// Configuration
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
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefConf is the configuration file consulted when no explicit path
// is given.
const DefConf = "go-dentcp.toml"

type ProtoConf struct {
	Addr          string        `toml:"addr"`
	Port          uint          `toml:"port"`
	MaxClients    uint          `toml:"max-clients"`
	MaxFrame      uint          `toml:"max-frame"`
	AcceptTimeout time.Duration `toml:"accept-timeout"`
}

type HeartConf struct {
	PingInterval    time.Duration `toml:"ping-interval"`
	PongTimeout     time.Duration `toml:"pong-timeout"`
	MissedThreshold uint          `toml:"missed-threshold"`
	ShortDisconnect time.Duration `toml:"short-disconnect"`
	LongDisconnect  time.Duration `toml:"long-disconnect"`
	ConnTimeout     time.Duration `toml:"conn-timeout"`
	Sweep           time.Duration `toml:"sweep"`
}

type GameConf struct {
	MaxRooms uint `toml:"max-rooms"`
}

type LimitConf struct {
	Codec     uint          `toml:"codec"`
	Phase     uint          `toml:"phase"`
	Flood     uint          `toml:"flood"`
	Reset     time.Duration `toml:"reset"`
	FrameRate float64       `toml:"frame-rate"`
	Burst     uint          `toml:"burst"`
}

type WebConf struct {
	Enabled   bool `toml:"enabled"`
	Port      uint `toml:"port"`
	WebSocket bool `toml:"websocket"`
}

// Internal representation
type Conf struct {
	Proto ProtoConf `toml:"proto"`
	Heart HeartConf `toml:"heartbeat"`
	Game  GameConf  `toml:"game"`
	Limit LimitConf `toml:"limits"`
	Web   WebConf   `toml:"web"`
}

// Configuration object used by default
var defaultConfig = Conf{
	Proto: ProtoConf{
		Addr:          "",
		Port:          2671,
		MaxClients:    100,
		MaxFrame:      8192,
		AcceptTimeout: time.Second * 5,
	},
	Heart: HeartConf{
		PingInterval:    time.Second * 5,
		PongTimeout:     time.Second * 3,
		MissedThreshold: 3,
		ShortDisconnect: time.Second * 40,
		LongDisconnect:  time.Second * 80,
		ConnTimeout:     time.Second * 100,
		Sweep:           time.Second,
	},
	Game: GameConf{
		MaxRooms: 50,
	},
	Limit: LimitConf{
		Codec:     1,
		Phase:     3,
		Flood:     3,
		Reset:     time.Second * 60,
		FrameRate: 50,
		Burst:     100,
	},
	Web: WebConf{
		Enabled:   true,
		Port:      8080,
		WebSocket: true,
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Conf {
	c := defaultConfig
	return &c
}

// Open reads the configuration file at PATH on top of the defaults.
func Open(path string) (*Conf, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	c := defaultConfig
	if _, err := toml.NewDecoder(file).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Serialise the configuration into a writer
func (c *Conf) Dump(wr io.Writer) error {
	return toml.NewEncoder(wr).Encode(c)
}
