package debugdetect

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestParseTracerPid(t *testing.T) {
	testCases := []struct {
		in   string
		pid  int
		fail bool
	}{
		{"Name:\tfoo\nState:\tR (running)\nTracerPid:\t0\nUid:\t0\n", 0, false},
		{"Name:\tfoo\nTracerPid:\t4242\n", 4242, false},
		{"Name:\tfoo\nTracerPid:\n", 0, true},
		{"Name:\tfoo\nTracerPid:\tabc\n", 0, true},
		{"Name:\tfoo\n", 0, true},
	}
	for _, tc := range testCases {
		pid, err := parseTracerPid(strings.NewReader(tc.in))
		if tc.fail {
			if err == nil {
				t.Errorf("%q: expected error, got %d", tc.in, pid)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.in, err)
		} else if pid != tc.pid {
			t.Errorf("%q: got %d, expected %d", tc.in, pid, tc.pid)
		}
	}
}

func TestWaitForDebuggerCanceled(t *testing.T) {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
	default:
		t.Skip("unsupported platform")
	}
	if attached, _ := IsDebuggerAttached(); attached {
		t.Skip("test is running under a debugger")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := WaitForDebugger(ctx, 10*time.Millisecond); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
