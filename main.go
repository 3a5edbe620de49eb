// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/federava/week2/repo"
	"github.com/jessevdk/go-flags"
)

func main() {
	// Load the config file. There are three steps to this:
	// 1. Start with a config populated with default values.
	// 2. Override the default values with any provided config file options.
	// 3. Override the first two with any provided command line options.
	cfg, err := repo.LoadConfig()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err.Error())
	}

	if cfg.ShowVersion {
		fmt.Println("poold version", repo.VersionString())
		os.Exit(0)
	}

	if cfg.Demo {
		if _, err := setupLogging("", cfg.LogLevel); err != nil {
			log.Fatal(err.Error())
		}
		if err := runDemo(cfg); err != nil {
			log.Fatal("Demo failed", log.Args("error", err))
		}
		return
	}

	// Build and start the server.
	server, err := BuildServer(cfg)
	if err != nil {
		log.Fatal(err.Error())
	}

	// Listen for an exit signal and close.
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	for sig := range c {
		if sig == syscall.SIGINT || sig == syscall.SIGTERM {
			log.Info("poold gracefully shutting down")
			if err := server.Close(); err != nil {
				log.Error("Shutdown error", log.Args("error", err))
			}
			os.Exit(1)
		}
	}
}
