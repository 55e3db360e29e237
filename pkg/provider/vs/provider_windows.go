package vs

import (
	"fmt"

	"github.com/go-delve/vsattach/pkg/automation"
	"github.com/go-delve/vsattach/pkg/config"
	"github.com/go-delve/vsattach/pkg/debugdetect"
	"github.com/go-delve/vsattach/pkg/proctree"
	"github.com/go-delve/vsattach/pkg/rot"
	"golang.org/x/sys/windows"
)

func newDeps(conf *config.Config) Deps {
	return Deps{
		Attached: debugdetect.IsDebuggerAttached,
		SelfPID:  func() int { return int(windows.GetCurrentProcessId()) },
		Walker:   proctree.NewWalker(proctree.NewTable(), conf.HostNames, conf.MaxAncestorDepth),
		Scanner:  rot.NewScanner(rot.NewBroker(), conf.MonikerPrefix),
		Invoker:  automation.NewInvoker(conf.AttachRetries, conf.AttachRetryDelay),
		NewHost: func(obj rot.Object) (automation.Host, error) {
			co, ok := obj.(*rot.ComObject)
			if !ok {
				return nil, fmt.Errorf("unexpected object %T", obj)
			}
			return automation.NewHost(co.Unknown)
		},
		Apartment: func(fn func() error) error {
			var ferr error
			err := automation.WithApartment(func() error {
				ferr = fn()
				return nil
			})
			if err != nil {
				return &rot.AcquireError{Step: "COM apartment", Err: err}
			}
			return ferr
		},
	}
}
