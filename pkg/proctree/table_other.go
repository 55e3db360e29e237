//go:build !windows

package proctree

type unsupportedTable struct{}

// NewTable returns the Table of the processes running on this system.
// Only Windows is supported, elsewhere every lookup fails.
func NewTable() Table {
	return unsupportedTable{}
}

func (unsupportedTable) Name(pid int) (string, error) {
	return "", ErrUnsupported
}

func (unsupportedTable) Parent(pid int) (int, error) {
	return 0, ErrUnsupported
}
