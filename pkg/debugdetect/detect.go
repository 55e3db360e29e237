package debugdetect

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// IsDebuggerAttached returns true if the current process is being debugged.
//
// Returns an error if the debugger state cannot be determined.
// Supported platforms: windows, linux, darwin
func IsDebuggerAttached() (bool, error) {
	return detectDebuggerAttached()
}

// WaitForDebugger polls IsDebuggerAttached every interval until a debugger
// attaches to the current process or ctx is done.
func WaitForDebugger(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		attached, err := IsDebuggerAttached()
		if attached || err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// parseTracerPid extracts the TracerPid field from the contents of a
// /proc/<pid>/status file.
func parseTracerPid(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "TracerPid:") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return 0, fmt.Errorf("malformed TracerPid line: %s", line)
			}
			pid, err := strconv.Atoi(fields[1])
			if err != nil {
				return 0, fmt.Errorf("failed to parse TracerPid value: %w", err)
			}
			return pid, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, err
	}

	return 0, fmt.Errorf("TracerPid field not found")
}
