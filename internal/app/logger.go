// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package app

import (
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
)

// logTheme is the console handler theme. Only the parts that help
// scanning a long export run get a color.
type logTheme struct{}

func (logTheme) Name() string                    { return "cardforge" }
func (logTheme) Timestamp() console.ANSIMod      { return console.ToANSICode(console.BrightBlack) }
func (logTheme) Source() console.ANSIMod         { return console.ToANSICode(console.BrightBlack) }
func (logTheme) Message() console.ANSIMod        { return console.ToANSICode(console.Bold) }
func (logTheme) MessageDebug() console.ANSIMod   { return console.ToANSICode() }
func (logTheme) AttrKey() console.ANSIMod        { return console.ToANSICode(console.Cyan) }
func (logTheme) AttrValue() console.ANSIMod      { return console.ToANSICode(console.Faint) }
func (logTheme) AttrValueError() console.ANSIMod { return console.ToANSICode(console.Bold, console.Red) }
func (logTheme) LevelError() console.ANSIMod     { return console.ToANSICode(console.Bold, console.Red) }
func (logTheme) LevelWarn() console.ANSIMod      { return console.ToANSICode(console.Bold, console.Yellow) }
func (logTheme) LevelInfo() console.ANSIMod      { return console.ToANSICode(console.Bold, console.Green) }
func (logTheme) LevelDebug() console.ANSIMod {
	return console.ToANSICode(console.Bold, console.BrightMagenta)
}

func (t logTheme) Level(level slog.Level) console.ANSIMod {
	switch {
	case level >= slog.LevelError:
		return t.LevelError()
	case level >= slog.LevelWarn:
		return t.LevelWarn()
	case level >= slog.LevelInfo:
		return t.LevelInfo()
	}
	return t.LevelDebug()
}

// initLogger sets the process-wide logger.
func initLogger(level slog.Level) {
	handler := console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: level,
		Theme: logTheme{},
	})
	slog.SetDefault(slog.New(handler))
}
