//go:build linux

package debugdetect

import (
	"fmt"
	"os"
)

func detectDebuggerAttached() (bool, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return false, fmt.Errorf("failed to read /proc/self/status: %w", err)
	}
	defer f.Close()

	pid, err := parseTracerPid(f)
	if err != nil {
		return false, fmt.Errorf("/proc/self/status: %w", err)
	}
	return pid != 0, nil
}
