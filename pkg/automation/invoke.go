// Package automation attaches processes to a debugger through the
// automation object published by the debugger host.
//
// The host is reached through a fixed navigation path,
// host.Debugger.LocalProcesses[*], where each process exposes a ProcessID
// property and an Attach method. The interfaces of this package model that
// path; NewHost adapts a COM object of the running object table to them.
package automation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-delve/vsattach/pkg/logflags"
)

const (
	DefaultRetries = 10
	DefaultDelay   = 250 * time.Millisecond
)

// Host is the root automation object of a debugger host.
type Host interface {
	Debugger() (Debugger, error)
	Release()
}

// Debugger is the debugger of a host.
type Debugger interface {
	LocalProcesses() (Processes, error)
	Release()
}

// Processes is the collection of the processes running on the local
// machine, as seen by the debugger.
type Processes interface {
	Enumerate() (ProcessEnumerator, error)
	Release()
}

// ProcessEnumerator iterates over a Processes collection.
type ProcessEnumerator interface {
	// Next returns the next process or nil at the end of the collection.
	Next() (Process, error)
	Release()
}

// Process is a process of a Processes collection.
type Process interface {
	ProcessID() (int, error)
	Attach() error
	Release()
}

// TransientError is a failure of the host that may not happen again if the
// operation is retried, typically because the host is busy.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("debugger host unavailable: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err, or any error it wraps, is a
// TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Invoker attaches processes to debugger hosts.
type Invoker struct {
	// Retries is the maximum number of attempts made while the host
	// reports transient errors.
	Retries int
	// Delay is the pause between two attempts.
	Delay time.Duration
	// Sleep is called to pause between attempts, time.Sleep if nil.
	Sleep func(time.Duration)

	logOnce sync.Once
	log     logflags.Logger
}

// NewInvoker returns an Invoker making up to retries attempts, delay apart.
func NewInvoker(retries int, delay time.Duration) *Invoker {
	return &Invoker{Retries: retries, Delay: delay}
}

func (inv *Invoker) logger() logflags.Logger {
	inv.logOnce.Do(func() {
		if inv.log == nil {
			inv.log = logflags.AutomationLogger()
		}
	})
	return inv.log
}

// Attach looks for process pid among the local processes of host and
// attaches the host's debugger to it. It returns false if host does not
// list pid or if host stayed unavailable for all the attempts. Errors other
// than a TransientError are returned as is.
func (inv *Invoker) Attach(host Host, pid int) (bool, error) {
	retries := inv.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	delay := inv.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	sleep := inv.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	log := inv.logger()

	for attempt := 1; ; attempt++ {
		ok, err := inv.attach(host, pid)
		if err == nil {
			if !ok {
				log.Debugf("process %d not found among the debugger's local processes", pid)
			}
			return ok, nil
		}
		if !IsTransient(err) {
			return false, err
		}
		if logflags.Automation() {
			log.WithError(err).Debugf("attempt %d of %d failed", attempt, retries)
		}
		if attempt >= retries {
			log.WithError(err).Warnf("debugger host unavailable after %d attempts", retries)
			return false, nil
		}
		sleep(delay)
	}
}

func (inv *Invoker) attach(host Host, pid int) (bool, error) {
	dbg, err := host.Debugger()
	if err != nil {
		return false, err
	}
	defer dbg.Release()

	procs, err := dbg.LocalProcesses()
	if err != nil {
		return false, err
	}
	defer procs.Release()

	enum, err := procs.Enumerate()
	if err != nil {
		return false, err
	}
	defer enum.Release()

	for {
		p, err := enum.Next()
		if err != nil {
			return false, err
		}
		if p == nil {
			return false, nil
		}
		found, err := attachIfMatch(p, pid)
		if found || err != nil {
			return found, err
		}
	}
}

// attachIfMatch attaches p if its id is pid. It always releases p.
func attachIfMatch(p Process, pid int) (bool, error) {
	defer p.Release()
	id, err := p.ProcessID()
	if err != nil {
		return false, err
	}
	if id != pid {
		return false, nil
	}
	if err := p.Attach(); err != nil {
		return false, err
	}
	return true, nil
}
