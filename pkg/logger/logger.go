package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[string]LogLevel{
	"debug":   DEBUG,
	"info":    INFO,
	"warn":    WARN,
	"warning": WARN,
	"error":   ERROR,
}

// Options controls where log lines go and how they look.
type Options struct {
	Level string
	JSON  bool
	// File, when set, receives the log output instead of stderr.
	File string
}

var (
	mu      sync.RWMutex
	base    = newConsole(os.Stderr)
	logFile *os.File
)

func newConsole(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
}

// Init replaces the process-wide logger. It is safe to call more than once.
func Init(opts Options) error {
	var out io.Writer = os.Stderr
	var f *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("logger: create log dir: %w", err)
		}
		var err error
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("logger: open %s: %w", opts.File, err)
		}
		out = f
	}

	var l zerolog.Logger
	if opts.JSON {
		l = zerolog.New(out).With().Timestamp().Logger()
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: f != nil}).
			With().Timestamp().Logger()
	}
	l = l.Level(toZerolog(ParseLevel(opts.Level)))

	mu.Lock()
	old := logFile
	base = l
	logFile = f
	mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// SetOutput redirects logging to w. Mostly useful in tests.
func SetOutput(w io.Writer, level LogLevel) {
	mu.Lock()
	base = zerolog.New(w).With().Timestamp().Logger().Level(toZerolog(level))
	mu.Unlock()
}

// ParseLevel maps a level name to a LogLevel, defaulting to INFO.
func ParseLevel(name string) LogLevel {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return INFO
}

func toZerolog(level LogLevel) zerolog.Level {
	switch level {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func logMessage(level LogLevel, component string, message string, fields map[string]interface{}) {
	mu.RLock()
	l := base
	mu.RUnlock()

	var ev *zerolog.Event
	switch level {
	case DEBUG:
		ev = l.Debug()
	case WARN:
		ev = l.Warn()
	case ERROR:
		ev = l.Error()
	default:
		ev = l.Info()
	}
	if !ev.Enabled() {
		return
	}
	if component != "" {
		ev = ev.Str("component", component)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(message)
}

func Debug(message string) {
	logMessage(DEBUG, "", message, nil)
}

func DebugC(component string, message string) {
	logMessage(DEBUG, component, message, nil)
}

func DebugCF(component string, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) {
	logMessage(INFO, "", message, nil)
}

func InfoC(component string, message string) {
	logMessage(INFO, component, message, nil)
}

func InfoCF(component string, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) {
	logMessage(WARN, "", message, nil)
}

func WarnC(component string, message string) {
	logMessage(WARN, component, message, nil)
}

func WarnCF(component string, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func Error(message string) {
	logMessage(ERROR, "", message, nil)
}

func ErrorC(component string, message string) {
	logMessage(ERROR, component, message, nil)
}

func ErrorCF(component string, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}
