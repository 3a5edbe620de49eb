// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"

	"github.com/federava/week2/bridge"
	"github.com/federava/week2/ledger"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/rpc"
	"github.com/federava/week2/wallet"
	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)

var LogLevelMap = map[string]pterm.LogLevel{
	"trace":   pterm.LogLevelTrace,
	"debug":   pterm.LogLevelDebug,
	"info":    pterm.LogLevelInfo,
	"warning": pterm.LogLevelWarn,
	"error":   pterm.LogLevelError,
	"fatal":   pterm.LogLevelFatal,
}

// setupLogging builds the daemon logger and hands it to every package.
// Output goes to stdout and, if logDir is set, to a rotated log file.
func setupLogging(logDir, level string) (*lumberjack.Logger, error) {
	logLevel, ok := LogLevelMap[strings.ToLower(level)]
	if !ok {
		return nil, errors.New("invalid log level")
	}

	var (
		out        io.Writer = os.Stdout
		logRotator *lumberjack.Logger
	)
	if logDir != "" {
		logRotator = &lumberjack.Logger{
			Filename:   path.Join(logDir, repo.DefaultLogFilename),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		out = io.MultiWriter(os.Stdout, logRotator)
	}

	logger := pterm.DefaultLogger.
		WithLevel(logLevel).
		WithWriter(out).
		WithTime(true).
		WithTimeFormat("2006-01-02T15:04:05Z07:00")

	log = logger
	repo.UseLogger(logger)
	pool.UseLogger(logger)
	ledger.UseLogger(logger)
	bridge.UseLogger(logger)
	wallet.UseLogger(logger)
	rpc.UseLogger(logger)
	return logRotator, nil
}
