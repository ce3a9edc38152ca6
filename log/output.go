package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"
)

var output io.Writer = os.Stderr

// SetOutput sets the destination for formatted log lines. It must be called
// before Start.
func SetOutput(w io.Writer) {
	output = w
}

// Start begins writing buffered log lines. Calling Start more than once is a
// no-op.
func Start() {
	if !started.SetToIf(false, true) {
		return
	}
	go writer()
	close(startedSignal)
}

// Shutdown stops the log writer after draining buffered lines.
func Shutdown() {
	if !started.IsSet() {
		return
	}
	if !shutdownFlag.SetToIf(false, true) {
		return
	}
	<-shutdownDone
}

func formatLine(line *logLine) string {
	file := line.file
	if file != "" {
		file = path.Base(file)
	}
	if line.line == 0 {
		return fmt.Sprintf(
			"%s %s %s",
			line.timestamp.Format("060102 15:04:05.000"),
			line.level.String(),
			line.msg,
		)
	}
	return fmt.Sprintf(
		"%s %s %s:%03d %s",
		line.timestamp.Format("060102 15:04:05.000"),
		line.level.String(),
		file,
		line.line,
		line.msg,
	)
}

func writeLine(line *logLine) {
	fmt.Fprintln(output, formatLine(line))
}

func writer() {
	for {
		select {
		case line := <-logBuffer:
			writeLine(line)
		default:
			if shutdownFlag.IsSet() {
				// Drain what is left, then signal completion.
				for {
					select {
					case line := <-logBuffer:
						writeLine(line)
					default:
						close(shutdownDone)
						return
					}
				}
			}
			select {
			case line := <-logBuffer:
				writeLine(line)
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}
