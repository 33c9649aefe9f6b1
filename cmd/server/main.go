// Entry point
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

package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"go-dentcp"
	"go-dentcp/cmd"
	"go-dentcp/game"
	"go-dentcp/proto"
	"go-dentcp/web"

	"github.com/spf13/cobra"
)

var (
	confFile string
	debug    bool
	dumpConf bool
)

var root = &cobra.Command{
	Use:           "dentcp-server",
	Short:         "Checkers game server speaking the DENTCP protocol",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serve = &cobra.Command{
	Use:   "serve <port> [bind_address]",
	Short: "Accept connections and run games",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(c *cobra.Command, args []string) error {
		config, err := loadConf()
		if err != nil {
			return err
		}

		port, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port %q", args[0])
		}
		config.Proto.Port = uint(port)
		if len(args) == 2 {
			config.Proto.Addr = args[1]
		}

		if dumpConf {
			return config.Dump(os.Stdout)
		}

		st := cmd.MakeState()
		lobby := game.MakeLobby(config)
		st.Register(lobby)
		st.Register(game.MakeMonitor(lobby))

		// Bind the game socket up front so that a taken port
		// fails with a proper exit status.
		listener := proto.MakeListener(config)
		if err := listener.Init(); err != nil {
			return err
		}
		st.Register(listener)

		if config.Web.Enabled {
			st.Register(web.MakeServer(config))
		}

		st.Start(config)
		return nil
	},
}

func loadConf() (*cmd.Conf, error) {
	config, err := cmd.Open(confFile)
	if err != nil {
		if !os.IsNotExist(err) || confFile != cmd.DefConf {
			return nil, err
		}
		config = cmd.Default()
	}

	if debug {
		dentcp.Debug.SetOutput(os.Stderr)
		log.Default().SetFlags(log.LstdFlags | log.Lshortfile)
		dentcp.Debug.Println("Debug logging has been enabled")
	}
	return config, nil
}

func main() {
	root.PersistentFlags().StringVar(&confFile, "conf", cmd.DefConf,
		"Path to configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug output")
	root.PersistentFlags().BoolVar(&dumpConf, "dump-config", false,
		"Dump the effective configuration and exit")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
