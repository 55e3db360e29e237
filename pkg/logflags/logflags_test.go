package logflags

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type bufferWriter struct {
	bytes.Buffer
}

func (bw bufferWriter) Close() error {
	return nil
}

func resetFlags() {
	provider, rot, automation, proctree = false, false, false, false
	logOut = nil
	loggerFactory = nil
}

func TestMakeLogger_usingLoggerFactory(t *testing.T) {
	defer resetFlags()
	logOut = &bufferWriter{}

	expectedLogger := &logrusLogger{}
	SetLoggerFactory(func(flag bool, fields Fields, out io.Writer) Logger {
		if !flag {
			t.Fatalf("expected flag to be true")
		}
		if len(fields) != 1 || fields["foo"] != "bar" {
			t.Fatalf("expected fields to be {'foo':'bar'}; but was <%v>", fields)
		}
		if out != logOut {
			t.Fatalf("expected out to be <%v>; but was <%v>", logOut, out)
		}
		return expectedLogger
	})

	actual := makeLogger(true, Fields{"foo": "bar"})
	if actual != expectedLogger {
		t.Fatalf("expected actual to <%v>; but was <%v>", expectedLogger, actual)
	}
}

func TestMakeLogger_levels(t *testing.T) {
	defer resetFlags()
	for _, flag := range []bool{false, true} {
		actual := makeLogger(flag, Fields{"layer": "rot"})
		entry, ok := actual.(*logrusLogger)
		if !ok {
			t.Fatalf("expected a *logrusLogger, got %T", actual)
		}
		expected := logrus.ErrorLevel
		if flag {
			expected = logrus.DebugLevel
		}
		if entry.Logger.Level != expected {
			t.Errorf("flag=%v: expected level %v, got %v", flag, expected, entry.Logger.Level)
		}
		if entry.Data["layer"] != "rot" {
			t.Errorf("flag=%v: expected layer field, got %v", flag, entry.Data)
		}
	}
}

func TestMakeLogger_writesToLogOut(t *testing.T) {
	defer resetFlags()
	buf := &bufferWriter{}
	logOut = buf

	makeLogger(true, Fields{"layer": "automation"}).Debugf("attempt %d", 3)
	out := buf.String()
	if !strings.Contains(out, "attempt 3") || !strings.Contains(out, "layer=automation") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestSetup(t *testing.T) {
	testCases := []struct {
		log    bool
		logstr string
		err    bool
		check  func() bool
	}{
		{false, "", false, func() bool { return !provider && !rot }},
		{false, "rot", true, nil},
		{true, "", false, func() bool { return provider && !rot }},
		{true, "rot,automation", false, func() bool { return rot && automation && !provider }},
		{true, "proctree", false, func() bool { return proctree }},
		{true, "gdbwire", true, nil},
	}
	for _, tc := range testCases {
		resetFlags()
		err := Setup(tc.log, tc.logstr, "")
		if tc.err {
			if err == nil {
				t.Errorf("Setup(%v, %q): expected error", tc.log, tc.logstr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Setup(%v, %q): unexpected error %v", tc.log, tc.logstr, err)
			continue
		}
		if !tc.check() {
			t.Errorf("Setup(%v, %q): flags not set as expected", tc.log, tc.logstr)
		}
	}
	resetFlags()
}

func TestSetupResetsFlags(t *testing.T) {
	defer resetFlags()
	if err := Setup(true, "rot,proctree", ""); err != nil {
		t.Fatal(err)
	}
	if !ROT() || !ProcTree() || Provider() || Automation() {
		t.Fatalf("flags not set as expected")
	}
	if err := Setup(false, "", ""); err != nil {
		t.Fatal(err)
	}
	if ROT() || ProcTree() || Provider() || Automation() {
		t.Errorf("flags not reset")
	}
}

