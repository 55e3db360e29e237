//go:build !windows

package rot

import (
	"fmt"
	"runtime"
)

type unsupportedBroker struct{}

// NewBroker returns a Broker that always fails: the running object table
// only exists on Windows.
func NewBroker() Broker {
	return unsupportedBroker{}
}

func (unsupportedBroker) BindContext() (BindContext, error) {
	return nil, fmt.Errorf("running object table not supported on %s", runtime.GOOS)
}
