package logging

import (
	"fmt"
	"io"
	"log"
)

// Logger is the leveled logger shared by every component.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// StdLogger writes leveled lines through a standard library *log.Logger.
type StdLogger struct {
	std   *log.Logger
	debug bool
}

var _ Logger = (*StdLogger)(nil)

// NewStd returns a StdLogger writing to w. Debug lines are dropped unless
// debug is set.
func NewStd(w io.Writer, debug bool) *StdLogger {
	return &StdLogger{
		std:   log.New(w, "LMS : ", log.LstdFlags|log.Lmicroseconds),
		debug: debug,
	}
}

// Std exposes the underlying *log.Logger.
func (l *StdLogger) Std() *log.Logger {
	return l.std
}

func (l *StdLogger) print(level, format string, args []interface{}) {
	l.std.Printf("%-5s %s", level, fmt.Sprintf(format, args...))
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	if l.debug {
		l.print("DEBUG", format, args)
	}
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.print("INFO", format, args)
}

func (l *StdLogger) Warn(format string, args ...interface{}) {
	l.print("WARN", format, args)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.print("ERROR", format, args)
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return NewStd(io.Discard, false)
}
