// Package context holds the state shared by the CLI commands: I/O streams,
// filesystem, configuration, state database and logger.
//
// It's separate from the app package so that cli can import it without an
// import cycle.
package context
