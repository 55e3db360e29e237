// Package rot finds the automation object published by a process in the
// system-wide running object table.
//
// Objects in the table are named by a display name built from a prefix,
// identifying the family of the object, and a ":<pid>" suffix, identifying
// the process that published it. Every handle obtained from the table is
// reference counted and must be released exactly once.
package rot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-delve/vsattach/pkg/logflags"
)

// Broker creates bind contexts.
type Broker interface {
	BindContext() (BindContext, error)
}

// BindContext is the context of a moniker binding operation.
type BindContext interface {
	RunningObjectTable() (Table, error)
	Release()
}

// Table is the running object table.
type Table interface {
	EnumRunning() (Enumerator, error)
	// GetObject returns the live object registered under m.
	GetObject(m Moniker) (Object, error)
	Release()
}

// Enumerator iterates over the monikers registered in a Table.
type Enumerator interface {
	// Next returns the next moniker or nil at the end of the table.
	Next() (Moniker, error)
	Release()
}

// Moniker is the name of an object registered in a Table.
type Moniker interface {
	DisplayName(bc BindContext) (string, error)
	Release()
}

// Object is a live object obtained from a Table.
type Object interface {
	Release()
}

// Visitor is called with the object found by Scan. The object is released
// by Scan once the visitor returns.
type Visitor func(obj Object) (bool, error)

// AcquireError is returned by Scan when the bind context, the running
// object table or its enumerator can not be obtained.
type AcquireError struct {
	Step string
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("could not acquire %s: %v", e.Step, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// Scanner looks for objects whose display name starts with Prefix.
type Scanner struct {
	Broker Broker
	Prefix string

	logOnce sync.Once
	log     logflags.Logger
}

// NewScanner returns a Scanner over the table of broker.
func NewScanner(broker Broker, prefix string) *Scanner {
	return &Scanner{Broker: broker, Prefix: prefix}
}

func (s *Scanner) logger() logflags.Logger {
	s.logOnce.Do(func() {
		if s.log == nil {
			s.log = logflags.ROTLogger()
		}
	})
	return s.log
}

// Scan looks for the object published by process hostPID and calls visit
// with it, returning the visitor's result. Only the first matching object is
// visited. If no object matches Scan returns false.
func (s *Scanner) Scan(hostPID int, visit Visitor) (bool, error) {
	log := s.logger()

	bc, err := s.Broker.BindContext()
	if err != nil {
		return false, &AcquireError{"bind context", err}
	}
	if bc == nil {
		return false, &AcquireError{"bind context", errNilHandle}
	}
	defer bc.Release()

	tbl, err := bc.RunningObjectTable()
	if err != nil {
		return false, &AcquireError{"running object table", err}
	}
	if tbl == nil {
		return false, &AcquireError{"running object table", errNilHandle}
	}
	defer tbl.Release()

	enum, err := tbl.EnumRunning()
	if err != nil {
		return false, &AcquireError{"moniker enumerator", err}
	}
	if enum == nil {
		return false, &AcquireError{"moniker enumerator", errNilHandle}
	}
	defer enum.Release()

	suffix := ":" + strconv.Itoa(hostPID)

	for {
		m, err := enum.Next()
		if err != nil {
			log.WithError(err).Debug("enumeration stopped")
			return false, nil
		}
		if m == nil {
			log.Debugf("no entry ending with %q", suffix)
			return false, nil
		}
		done, ok, err := s.visitEntry(log, bc, tbl, m, suffix, visit)
		if done {
			return ok, err
		}
	}
}

// visitEntry checks m against the expected display name and, if it
// matches, visits its object. It always releases m.
func (s *Scanner) visitEntry(log logflags.Logger, bc BindContext, tbl Table, m Moniker, suffix string, visit Visitor) (done, ok bool, err error) {
	defer m.Release()

	name, err := m.DisplayName(bc)
	if err != nil {
		log.WithError(err).Debug("could not read display name")
		return false, false, nil
	}
	if !strings.HasPrefix(name, s.Prefix) || !strings.HasSuffix(name, suffix) {
		if logflags.ROT() {
			log.Debugf("skipping %q", name)
		}
		return false, false, nil
	}

	log.Debugf("found %q", name)
	obj, err := tbl.GetObject(m)
	if err != nil {
		log.WithError(err).Warnf("could not get object %q", name)
		return true, false, nil
	}
	if obj == nil {
		return true, false, nil
	}
	defer obj.Release()

	ok, err = visit(obj)
	return true, ok, err
}

var errNilHandle = errors.New("nil handle")
