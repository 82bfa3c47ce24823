// Package log is a small leveled logger on top of the standard library
// logger. Components create named loggers with NewLogger; output goes
// nowhere until Init is called.
package log

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

type Level int

const (
	TRACE Level = 5
	DEBUG Level = 10
	INFO  Level = 20
	WARN  Level = 30
	ERROR Level = 40
)

func (l Level) String() string {
	switch l {
	case TRACE:
		return "trace"
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

var (
	mu       sync.RWMutex
	trace    *log.Logger
	dbg      *log.Logger
	info     *log.Logger
	warn     *log.Logger
	errl     *log.Logger
	minLevel = INFO
)

// Init directs all loggers to w. A nil writer disables logging.
func Init(w io.Writer, level Level) {
	mu.Lock()
	defer mu.Unlock()

	trace, dbg, info, warn, errl = nil, nil, nil, nil, nil
	minLevel = level
	if w == nil {
		return
	}
	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	trace = log.New(w, "TRACE ", flags)
	dbg = log.New(w, "DEBUG ", flags)
	info = log.New(w, "INFO  ", flags)
	warn = log.New(w, "WARN  ", flags)
	errl = log.New(w, "ERROR ", flags)
}

func ParseLevel(value string) (Level, error) {
	switch strings.ToLower(value) {
	case "trace":
		return TRACE, nil
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "err", "error":
		return ERROR, nil
	}
	return 0, fmt.Errorf("%s: invalid log level", value)
}

type Logger interface {
	Tracef(string, ...any)
	Debugf(string, ...any)
	Infof(string, ...any)
	Warnf(string, ...any)
	Errorf(string, ...any)
}

type logger struct {
	name      string
	calldepth int
}

// NewLogger returns a logger that prefixes every message with [name].
func NewLogger(name string) Logger {
	return &logger{name: name, calldepth: 3}
}

func (l *logger) format(message string, args ...any) string {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	if l.name != "" {
		message = fmt.Sprintf("[%s] %s", l.name, message)
	}
	return message
}

func (l *logger) output(level Level, message string, args ...any) {
	mu.RLock()
	var out *log.Logger
	switch level {
	case TRACE:
		out = trace
	case DEBUG:
		out = dbg
	case INFO:
		out = info
	case WARN:
		out = warn
	case ERROR:
		out = errl
	}
	enabled := out != nil && minLevel <= level
	mu.RUnlock()

	if !enabled {
		return
	}
	out.Output(l.calldepth, l.format(message, args...)) //nolint:errcheck // nothing to do with a failed log write
}

func (l *logger) Tracef(message string, args ...any) { l.output(TRACE, message, args...) }
func (l *logger) Debugf(message string, args ...any) { l.output(DEBUG, message, args...) }
func (l *logger) Infof(message string, args ...any)  { l.output(INFO, message, args...) }
func (l *logger) Warnf(message string, args ...any)  { l.output(WARN, message, args...) }
func (l *logger) Errorf(message string, args ...any) { l.output(ERROR, message, args...) }

var root = logger{calldepth: 3}

func Tracef(message string, args ...any) { root.output(TRACE, message, args...) }
func Debugf(message string, args ...any) { root.output(DEBUG, message, args...) }
func Infof(message string, args ...any)  { root.output(INFO, message, args...) }
func Warnf(message string, args ...any)  { root.output(WARN, message, args...) }
func Errorf(message string, args ...any) { root.output(ERROR, message, args...) }
