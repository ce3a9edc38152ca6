package log

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLevels(t *testing.T) {
	if ParseLevel("warning") != WarningLevel {
		t.Error("failed to parse warning level")
	}
	if ParseLevel("nonsense") != 0 {
		t.Error("parsed an unknown level")
	}
	if TraceLevel.String() != "TRAC" {
		t.Errorf("unexpected level name: %s", TraceLevel.String())
	}

	SetLogLevel(ErrorLevel)
	if GetLogLevel() != ErrorLevel {
		t.Error("failed to set log level")
	}
	if fastcheck(DebugLevel) {
		t.Error("debug should be filtered at error level")
	}
	SetLogLevel(TraceLevel)
}

func TestLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	SetLogLevel(TraceLevel)
	Start()

	Tracef("api call took %s", 10*time.Millisecond)
	Warning("backend count mismatch")
	Errorf("commit failed: code %d", 7)

	Shutdown()

	out := buf.String()
	for _, want := range []string{"TRAC", "api call took", "WARN", "ERRO", "code 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output is missing %q, got:\n%s", want, out)
		}
	}
}
