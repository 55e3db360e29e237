//go:build !windows

package vs

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-delve/vsattach/pkg/automation"
	"github.com/go-delve/vsattach/pkg/config"
	"github.com/go-delve/vsattach/pkg/debugdetect"
	"github.com/go-delve/vsattach/pkg/proctree"
	"github.com/go-delve/vsattach/pkg/rot"
)

// Visual Studio only runs on Windows: the ancestry walk and the scan of
// the running object table always come back empty.
func newDeps(conf *config.Config) Deps {
	return Deps{
		Attached: debugdetect.IsDebuggerAttached,
		SelfPID:  os.Getpid,
		Walker:   proctree.NewWalker(proctree.NewTable(), conf.HostNames, conf.MaxAncestorDepth),
		Scanner:  rot.NewScanner(rot.NewBroker(), conf.MonikerPrefix),
		Invoker:  automation.NewInvoker(conf.AttachRetries, conf.AttachRetryDelay),
		NewHost: func(obj rot.Object) (automation.Host, error) {
			return nil, fmt.Errorf("automation not supported on %s", runtime.GOOS)
		},
	}
}
