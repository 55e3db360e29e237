// Package vs implements the provider for the Visual Studio debugger.
//
// Discovery walks the ancestry of the current process looking for a
// Visual Studio process (devenv). Attaching uses the DTE automation object
// that each Visual Studio instance publishes in the running object table
// under the name "!VisualStudio.DTE.<version>:<pid>".
package vs

import (
	"errors"

	"github.com/go-delve/vsattach/pkg/automation"
	"github.com/go-delve/vsattach/pkg/config"
	"github.com/go-delve/vsattach/pkg/debuginfo"
	"github.com/go-delve/vsattach/pkg/logflags"
	"github.com/go-delve/vsattach/pkg/proctree"
	"github.com/go-delve/vsattach/pkg/rot"
)

// Kind is the kind of the infos produced by this provider.
var Kind = debuginfo.NewKind("vs")

// Deps are the collaborators of a Provider.
type Deps struct {
	// Attached reports whether a debugger is attached to the current
	// process.
	Attached func() (bool, error)
	// SelfPID returns the id of the current process.
	SelfPID func() int

	Walker  *proctree.Walker
	Scanner *rot.Scanner
	Invoker *automation.Invoker
	// NewHost adapts an object of the running object table.
	NewHost func(obj rot.Object) (automation.Host, error)
	// Apartment runs its argument in a context where the running object
	// table can be used. If nil the argument is called directly.
	Apartment func(fn func() error) error
}

// Provider is the Visual Studio provider.
type Provider struct {
	deps Deps
	log  logflags.Logger
}

// New returns a Provider using the processes and the running object table
// of this system, configured by conf.
func New(conf *config.Config) *Provider {
	return NewWithDeps(newDeps(conf))
}

// NewWithDeps returns a Provider using deps.
func NewWithDeps(deps Deps) *Provider {
	if deps.Apartment == nil {
		deps.Apartment = func(fn func() error) error { return fn() }
	}
	return &Provider{deps: deps, log: logflags.ProviderLogger().WithField("provider", Kind.Name())}
}

// Kind returns Kind.
func (p *Provider) Kind() *debuginfo.Kind {
	return Kind
}

// CurrentDebugger returns the Visual Studio instance debugging the current
// process, found among its ancestors. Nothing is returned when no debugger
// is attached to the current process.
func (p *Provider) CurrentDebugger() (debuginfo.Info, bool, error) {
	attached, err := p.deps.Attached()
	if err != nil {
		p.log.WithError(err).Warn("could not determine whether a debugger is attached")
		return debuginfo.Info{}, false, nil
	}
	if !attached {
		return debuginfo.Info{}, false, nil
	}
	return p.FindHost(p.deps.SelfPID())
}

// FindHost returns the closest Visual Studio instance among the ancestors
// of process pid, pid included.
func (p *Provider) FindHost(pid int) (debuginfo.Info, bool, error) {
	hostPID, ok := p.deps.Walker.FindAncestor(pid)
	if !ok {
		return debuginfo.Info{}, false, nil
	}
	return debuginfo.Info{Kind: Kind, ProcessID: hostPID}, true, nil
}

// AttachToDebugger attaches process pid to the Visual Studio instance
// described by info.
func (p *Provider) AttachToDebugger(info debuginfo.Info, pid int) (bool, error) {
	if info.Kind != Kind || info.ProcessID <= 0 {
		return false, nil
	}
	log := p.log.WithFields(logflags.Fields{"host": info.ProcessID, "pid": pid})

	var ok bool
	err := p.deps.Apartment(func() error {
		var err error
		ok, err = p.deps.Scanner.Scan(info.ProcessID, func(obj rot.Object) (bool, error) {
			host, err := p.deps.NewHost(obj)
			if err != nil {
				if automation.IsTransient(err) {
					log.WithError(err).Warn("automation object unavailable")
					return false, nil
				}
				return false, err
			}
			defer host.Release()
			return p.deps.Invoker.Attach(host, pid)
		})
		return err
	})

	var aerr *rot.AcquireError
	if errors.As(err, &aerr) {
		log.WithError(err).Warn("could not scan the running object table")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !ok {
		log.Debug("not attached")
	}
	return ok, nil
}
