// Package provider dispatches debugger discovery and attach requests to an
// ordered list of providers, one per debugger family.
package provider

import (
	"os"
	"sync"

	"github.com/go-delve/vsattach/pkg/debugdetect"
	"github.com/go-delve/vsattach/pkg/debuginfo"
	"github.com/go-delve/vsattach/pkg/logflags"
)

// Provider discovers and drives debuggers of one family.
type Provider interface {
	// Kind returns the kind of the infos produced by this provider.
	Kind() *debuginfo.Kind
	// CurrentDebugger returns the debugger attached to the current
	// process, if it belongs to this provider's family.
	CurrentDebugger() (debuginfo.Info, bool, error)
	// AttachToDebugger attaches process pid to the debugger described by
	// info. It returns false if info does not belong to this provider or if
	// the debugger could not attach the process.
	AttachToDebugger(info debuginfo.Info, pid int) (bool, error)
}

// Registry is an ordered list of providers. Requests are served by the
// first provider able to handle them, in registration order.
//
// All the methods of a Registry hold the same lock: requests are
// serialized with each other and with Register.
//
// The zero value is an empty registry checking the current process with
// os.Getpid and debugdetect.IsDebuggerAttached. A Registry must not be
// copied after first use.
type Registry struct {
	mu        sync.Mutex
	providers []Provider

	selfPID      func() int
	selfAttached func() (bool, error)
	log          logflags.Logger
}

// New returns a registry containing providers.
func New(providers ...Provider) *Registry {
	return &Registry{
		providers:    append([]Provider(nil), providers...),
		selfPID:      os.Getpid,
		selfAttached: debugdetect.IsDebuggerAttached,
	}
}

func (r *Registry) pid() int {
	if r.selfPID == nil {
		return os.Getpid()
	}
	return r.selfPID()
}

func (r *Registry) attached() (bool, error) {
	if r.selfAttached == nil {
		return debugdetect.IsDebuggerAttached()
	}
	return r.selfAttached()
}

// logger must be called with mu held.
func (r *Registry) logger() logflags.Logger {
	if r.log == nil {
		r.log = logflags.ProviderLogger()
	}
	return r.log
}

// Register appends p to the registry. Registering a provider twice is
// allowed, it will be queried twice.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Providers returns a copy of the registered providers, in order.
func (r *Registry) Providers() []Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Provider(nil), r.providers...)
}

// CurrentDebugger returns the debugger attached to the current process as
// reported by the first provider that finds one. An error returned by a
// provider stops the search and is returned.
func (r *Registry) CurrentDebugger() (debuginfo.Info, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		info, ok, err := p.CurrentDebugger()
		if err != nil {
			return debuginfo.Info{}, false, err
		}
		if ok {
			if logflags.Provider() {
				r.logger().Debugf("current debugger %v", info)
			}
			return info, true, nil
		}
	}
	return debuginfo.Info{}, false, nil
}

// AttachTo attaches process pid to the debugger described by info, using
// the first provider that succeeds. It returns false without consulting any
// provider if info is not valid or if pid is the current process and a
// debugger is already attached to it. An error returned by a provider stops
// the search and is returned.
func (r *Registry) AttachTo(info debuginfo.Info, pid int) (bool, error) {
	if !info.IsValid() {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if pid == r.pid() {
		attached, err := r.attached()
		if err != nil {
			return false, err
		}
		if attached {
			if logflags.Provider() {
				r.logger().Debugf("process %d already has a debugger", pid)
			}
			return false, nil
		}
	}
	for _, p := range r.providers {
		ok, err := p.AttachToDebugger(info, pid)
		if err != nil {
			return false, err
		}
		if ok {
			if logflags.Provider() {
				r.logger().Debugf("process %d attached to %v", pid, info)
			}
			return true, nil
		}
	}
	return false, nil
}

// AttachSelf attaches the current process to the debugger described by
// info.
func (r *Registry) AttachSelf(info debuginfo.Info) (bool, error) {
	return r.AttachTo(info, r.pid())
}

// KindByName returns the kind of the first registered provider whose kind
// is named name, or nil.
func (r *Registry) KindByName(name string) *debuginfo.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		if k := p.Kind(); k != nil && k.Name() == name {
			return k
		}
	}
	return nil
}

// Decode decodes the external representation of an info, resolving its
// kind against the registered providers.
func (r *Registry) Decode(data []byte) (debuginfo.Info, error) {
	return debuginfo.Unmarshal(data, r.KindByName)
}
