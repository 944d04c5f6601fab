// Package logging configures the process-wide structured logger.
package logging

import (
	"github.com/phuslu/log"
)

// New builds a console logger at the given level. Components receive it by
// value at construction; nothing in the pipeline logs through a global.
func New(level string) log.Logger {
	lvl := log.ParseLevel(level)
	if level == "" {
		lvl = log.InfoLevel
	}
	return log.Logger{
		Level:      lvl,
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
		},
	}
}
