// Package logging renders leveled, colored log lines and turns the engine's
// lifecycle signals into log output.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Level orders log output. Messages below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelVerbose
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = []string{"debug", "verbose", "info", "warn", "error"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a configured level name to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ColorEnabled reports whether output to f should be colored: f is a
// terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type sprintf func(format string, a ...interface{}) string

// Logger writes leveled lines through the standard log package.
type Logger struct {
	out   *log.Logger
	level atomic.Int32

	debug   sprintf
	verbose sprintf
	info    sprintf
	warn    sprintf
	err     sprintf
	success sprintf
}

// New creates a Logger writing to w.
func New(w io.Writer, level Level, colored bool) *Logger {
	paint := func(attrs ...color.Attribute) sprintf {
		c := color.New(attrs...)
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintfFunc()
	}

	l := &Logger{
		out:     log.New(w, "", log.LstdFlags),
		debug:   paint(color.FgCyan),
		verbose: paint(color.FgBlue),
		info:    paint(color.FgWhite),
		warn:    paint(color.FgYellow),
		err:     paint(color.FgRed),
		success: paint(color.FgGreen, color.Bold),
	}
	l.level.Store(int32(level))
	return l
}

// Level returns the logger's level.
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// SetLevel changes the level. Safe for concurrent use.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.Level()
}

func (l *Logger) print(level Level, paint sprintf, prefix, format string, args []interface{}) {
	if !l.Enabled(level) {
		return
	}
	l.out.Print(paint(prefix+format, args...))
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.print(LevelDebug, l.debug, "[DEBUG] ", format, args)
}

// Verbosef logs at verbose level.
func (l *Logger) Verbosef(format string, args ...interface{}) {
	l.print(LevelVerbose, l.verbose, "[VERBOSE] ", format, args)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.print(LevelInfo, l.info, "[INFO] ", format, args)
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.print(LevelWarn, l.warn, "[WARNING] ", format, args)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.print(LevelError, l.err, "[ERROR] ", format, args)
}

// Successf logs at info level in the success color.
func (l *Logger) Successf(format string, args ...interface{}) {
	l.print(LevelInfo, l.success, "[SUCCESS] ", format, args)
}
