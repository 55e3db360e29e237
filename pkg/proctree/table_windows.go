package proctree

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var errParentExited = errors.New("parent process has exited")

type winTable struct{}

// NewTable returns the Table of the processes running on this system.
func NewTable() Table {
	return winTable{}
}

func openProcess(pid int) (windows.Handle, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return 0, fmt.Errorf("could not open process %d: %w", pid, err)
	}
	return h, nil
}

func (winTable) Name(pid int) (string, error) {
	h, err := openProcess(pid)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)

	n := uint32(windows.MAX_PATH)
	for {
		buf := make([]uint16, n)
		err = windows.QueryFullProcessImageName(h, 0, &buf[0], &n)
		switch err {
		case windows.ERROR_INSUFFICIENT_BUFFER:
			n *= 2
			if n > 32768 {
				return "", err
			}
		case nil:
			base := filepath.Base(windows.UTF16ToString(buf[:n]))
			return strings.TrimSuffix(base, filepath.Ext(base)), nil
		default:
			return "", err
		}
	}
}

func (winTable) Parent(pid int) (int, error) {
	h, err := openProcess(pid)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)

	var pbi windows.PROCESS_BASIC_INFORMATION
	var retlen uint32
	err = windows.NtQueryInformationProcess(h, windows.ProcessBasicInformation, unsafe.Pointer(&pbi), uint32(unsafe.Sizeof(pbi)), &retlen)
	if err != nil {
		return 0, fmt.Errorf("NtQueryInformationProcess(%d): %w", pid, err)
	}
	ppid := int(pbi.InheritedFromUniqueProcessId)

	// The parent id is not cleared when the parent exits and it may have
	// been reused by a process started after pid.
	child, err := creationTime(h)
	if err != nil {
		return 0, err
	}
	ph, err := openProcess(ppid)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errParentExited, err)
	}
	defer windows.CloseHandle(ph)
	parent, err := creationTime(ph)
	if err != nil {
		return 0, err
	}
	if parent > child {
		return 0, fmt.Errorf("%w: pid %d reused", errParentExited, ppid)
	}
	return ppid, nil
}

func creationTime(h windows.Handle) (int64, error) {
	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return 0, err
	}
	return creation.Nanoseconds(), nil
}
