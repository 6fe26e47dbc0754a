// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package app provides the cardforge command line.
package app

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cristalhq/acmd"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[92m"
	colorYellow = "\033[93m"
	bold        = "\033[1m"
)

// version is set at build time.
var version = "dev"

// commands holds every registered subcommand.
var commands []acmd.Command

// appFlags are the flags shared by every subcommand.
type appFlags struct {
	logLevel string
}

// Flags returns a [flag.FlagSet] carrying the shared flags.
func (f *appFlags) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return fs
}

// appPreRun initializes the process-wide logger.
func appPreRun(flags *appFlags) error {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(flags.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", flags.logLevel)
	}
	initLogger(level)
	return nil
}

// Run executes the command line and returns the process exit code.
func Run() int {
	r := acmd.RunnerOf(commands, acmd.Config{
		AppName:        "cardforge",
		AppDescription: "Render and batch-export custom game cards",
		Version:        version,
	})

	if err := r.Run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err) //nolint:errcheck
		return 1
	}
	return 0
}
