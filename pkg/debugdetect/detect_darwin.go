package debugdetect

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// P_TRACED from sys/proc.h
const pTracedFlag = 0x00000800

func detectDebuggerAttached() (bool, error) {
	info, err := unix.SysctlKinfoProc("kern.proc.pid", os.Getpid())
	if err != nil {
		return false, fmt.Errorf("sysctl failed: %w", err)
	}
	return info.Proc.P_flag&pTracedFlag != 0, nil
}
