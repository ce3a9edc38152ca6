// Package log provides a leveled, buffered logger for the tabular engine.
//
// Logging is off until Start is called. Lines logged before that are held
// back and delivered once the writer is running, so early engine activity is
// not lost.
package log

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/tevino/abool"
)

// Severity describes a log level.
type Severity uint32

// Log levels.
const (
	TraceLevel    Severity = 1
	DebugLevel    Severity = 2
	InfoLevel     Severity = 3
	WarningLevel  Severity = 4
	ErrorLevel    Severity = 5
	CriticalLevel Severity = 6
)

func (s Severity) String() string {
	switch s {
	case TraceLevel:
		return "TRAC"
	case DebugLevel:
		return "DEBU"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARN"
	case ErrorLevel:
		return "ERRO"
	case CriticalLevel:
		return "CRIT"
	default:
		return "NONE"
	}
}

// ParseLevel returns the severity for the given name. It returns 0 for
// unknown names.
func ParseLevel(level string) Severity {
	switch level {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warning":
		return WarningLevel
	case "error":
		return ErrorLevel
	case "critical":
		return CriticalLevel
	}
	return 0
}

type logLine struct {
	msg       string
	level     Severity
	timestamp time.Time
	file      string
	line      int
}

var (
	logBuffer = make(chan *logLine, 1024)

	logLevel = uint32(InfoLevel)

	started       = abool.NewBool(false)
	startedSignal = make(chan struct{})
	shutdownFlag  = abool.NewBool(false)
	shutdownDone  = make(chan struct{})
)

// SetLogLevel sets the minimum severity that will be logged.
func SetLogLevel(level Severity) {
	atomic.StoreUint32(&logLevel, uint32(level))
}

// GetLogLevel returns the current minimum severity.
func GetLogLevel() Severity {
	return Severity(atomic.LoadUint32(&logLevel))
}

func fastcheck(level Severity) bool {
	return uint32(level) >= atomic.LoadUint32(&logLevel)
}

func log(level Severity, msg string) {
	if !started.IsSet() {
		// Hold back until logging has started.
		go func() {
			<-startedSignal
			submit(level, msg, "", 0, time.Now())
		}()
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = ""
		line = 0
	}

	submit(level, msg, file, line, time.Now())
}

func submit(level Severity, msg, file string, line int, timestamp time.Time) {
	if shutdownFlag.IsSet() {
		return
	}
	select {
	case logBuffer <- &logLine{
		msg:       msg,
		level:     level,
		timestamp: timestamp,
		file:      file,
		line:      line,
	}:
	default:
		// Buffer is full, drop the line instead of blocking the engine.
	}
}

// Trace logs a message at trace level.
func Trace(msg string) {
	if fastcheck(TraceLevel) {
		log(TraceLevel, msg)
	}
}

// Tracef formats and logs a message at trace level.
func Tracef(format string, things ...interface{}) {
	if fastcheck(TraceLevel) {
		log(TraceLevel, fmt.Sprintf(format, things...))
	}
}

// Debug logs a message at debug level.
func Debug(msg string) {
	if fastcheck(DebugLevel) {
		log(DebugLevel, msg)
	}
}

// Debugf formats and logs a message at debug level.
func Debugf(format string, things ...interface{}) {
	if fastcheck(DebugLevel) {
		log(DebugLevel, fmt.Sprintf(format, things...))
	}
}

// Info logs a message at info level.
func Info(msg string) {
	if fastcheck(InfoLevel) {
		log(InfoLevel, msg)
	}
}

// Infof formats and logs a message at info level.
func Infof(format string, things ...interface{}) {
	if fastcheck(InfoLevel) {
		log(InfoLevel, fmt.Sprintf(format, things...))
	}
}

// Warning logs a message at warning level.
func Warning(msg string) {
	if fastcheck(WarningLevel) {
		log(WarningLevel, msg)
	}
}

// Warningf formats and logs a message at warning level.
func Warningf(format string, things ...interface{}) {
	if fastcheck(WarningLevel) {
		log(WarningLevel, fmt.Sprintf(format, things...))
	}
}

// Error logs a message at error level.
func Error(msg string) {
	if fastcheck(ErrorLevel) {
		log(ErrorLevel, msg)
	}
}

// Errorf formats and logs a message at error level.
func Errorf(format string, things ...interface{}) {
	if fastcheck(ErrorLevel) {
		log(ErrorLevel, fmt.Sprintf(format, things...))
	}
}

// Critical logs a message at critical level.
func Critical(msg string) {
	if fastcheck(CriticalLevel) {
		log(CriticalLevel, msg)
	}
}

// Criticalf formats and logs a message at critical level.
func Criticalf(format string, things ...interface{}) {
	if fastcheck(CriticalLevel) {
		log(CriticalLevel, fmt.Sprintf(format, things...))
	}
}
