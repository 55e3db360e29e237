package provider

import (
	"sync"

	"github.com/go-delve/vsattach/pkg/config"
	"github.com/go-delve/vsattach/pkg/provider/vs"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry. It is created on first use
// with the Visual Studio provider, configured with the default
// configuration, as its first entry. Programs that load a configuration
// should build their own registry with New instead.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New(vs.New((&config.Config{}).Defaults()))
	})
	return defaultRegistry
}

// Register appends p to the process-wide registry.
func Register(p Provider) {
	Default().Register(p)
}
