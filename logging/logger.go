// Package logging builds the phuslu/log loggers shared by the heap, pool,
// and rpcsrv packages, in the same console-writer shape boro-db's
// logging.CreateDebugLogger uses.
package logging

import "github.com/phuslu/log"

// New builds a console logger at the given level.
func New(level log.Level) log.Logger {
	return log.Logger{
		Level:  level,
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
		},
	}
}

// Default returns the logger used when a caller does not inject one: info
// level and above, quiet enough for library use.
func Default() log.Logger {
	return New(log.InfoLevel)
}
