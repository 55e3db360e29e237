// Package proctree walks the ancestry of a process looking for a debugger
// host.
package proctree

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-delve/vsattach/pkg/logflags"
)

// DefaultMaxDepth is the number of processes visited by a Walker with a
// zero MaxDepth.
const DefaultMaxDepth = 64

// ErrUnsupported is returned by the lookups of a Table on platforms where
// processes can not be inspected.
var ErrUnsupported = errors.New("process inspection not supported on this platform")

// Table gives read-only access to the processes running on the system.
type Table interface {
	// Name returns the image name of process pid without directory and
	// extension (for example "devenv").
	Name(pid int) (string, error)
	// Parent returns the id of the process that created pid.
	Parent(pid int) (int, error)
}

// Walker follows the created-by relation from a process to its ancestors.
type Walker struct {
	Table Table
	// Names of the processes looked for, compared case-insensitively.
	Names []string
	// MaxDepth bounds the number of processes visited.
	MaxDepth int

	logOnce sync.Once
	log     logflags.Logger
}

// NewWalker returns a Walker looking for processes named names in table.
func NewWalker(table Table, names []string, maxDepth int) *Walker {
	return &Walker{Table: table, Names: names, MaxDepth: maxDepth}
}

func (w *Walker) logger() logflags.Logger {
	w.logOnce.Do(func() {
		if w.log == nil {
			w.log = logflags.ProcTreeLogger()
		}
	})
	return w.log
}

func (w *Walker) matches(name string) bool {
	for _, n := range w.Names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// FindAncestor returns the id of the closest process, starting with pid
// itself, whose name is one of w.Names. The walk stops without a result as
// soon as a name or parent lookup fails, when a process is visited twice or
// after MaxDepth processes.
func (w *Walker) FindAncestor(pid int) (int, bool) {
	maxDepth := w.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	log := w.logger()
	visited := make(map[int]struct{}, 8)
	for depth := 0; depth < maxDepth; depth++ {
		if _, seen := visited[pid]; seen {
			log.Debugf("process %d visited twice, stopping", pid)
			return 0, false
		}
		visited[pid] = struct{}{}

		name, err := w.Table.Name(pid)
		if err != nil {
			log.WithError(err).Debugf("could not read name of process %d", pid)
			return 0, false
		}
		if w.matches(name) {
			log.Debugf("found %s at process %d", name, pid)
			return pid, true
		}

		ppid, err := w.Table.Parent(pid)
		if err != nil {
			log.WithError(err).Debugf("could not read parent of process %d (%s)", pid, name)
			return 0, false
		}
		if logflags.ProcTree() {
			log.Debugf("process %d (%s) created by %d", pid, name, ppid)
		}
		pid = ppid
	}
	log.Debugf("no debugger host within %d ancestors", maxDepth)
	return 0, false
}
