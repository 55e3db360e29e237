package vs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-delve/vsattach/pkg/automation"
	"github.com/go-delve/vsattach/pkg/config"
	"github.com/go-delve/vsattach/pkg/debuginfo"
	"github.com/go-delve/vsattach/pkg/proctree"
	"github.com/go-delve/vsattach/pkg/rot"
)

type fakeTable map[int]struct {
	name   string
	parent int
}

func (ft fakeTable) Name(pid int) (string, error) {
	p, ok := ft[pid]
	if !ok {
		return "", fmt.Errorf("no process %d", pid)
	}
	return p.name, nil
}

func (ft fakeTable) Parent(pid int) (int, error) {
	p, ok := ft[pid]
	if !ok {
		return 0, fmt.Errorf("no process %d", pid)
	}
	return p.parent, nil
}

var processes = fakeTable{
	100: {"app", 200},
	200: {"VsDebugConsole", 400},
	400: {"devenv", 4},
	4:   {"System", 0},
}

// fakeROT is a running object table containing one object per entry of
// hosts, keyed by display name.
type fakeROT struct {
	hosts    map[string]*fakeHost
	failBind bool
	released int
	acquired int
}

func (r *fakeROT) BindContext() (rot.BindContext, error) {
	if r.failBind {
		return nil, errors.New("E_OUTOFMEMORY")
	}
	r.acquired++
	return r, nil
}

func (r *fakeROT) RunningObjectTable() (rot.Table, error) {
	r.acquired++
	return r, nil
}

func (r *fakeROT) EnumRunning() (rot.Enumerator, error) {
	r.acquired++
	names := make([]string, 0, len(r.hosts))
	for name := range r.hosts {
		names = append(names, name)
	}
	return &fakeEnum{r: r, names: names}, nil
}

func (r *fakeROT) GetObject(m rot.Moniker) (rot.Object, error) {
	r.acquired++
	return &fakeObject{r: r, host: r.hosts[m.(*fakeMoniker).name]}, nil
}

func (r *fakeROT) Release() { r.released++ }

type fakeEnum struct {
	r     *fakeROT
	names []string
}

func (e *fakeEnum) Next() (rot.Moniker, error) {
	if len(e.names) == 0 {
		return nil, nil
	}
	e.r.acquired++
	m := &fakeMoniker{r: e.r, name: e.names[0]}
	e.names = e.names[1:]
	return m, nil
}

func (e *fakeEnum) Release() { e.r.released++ }

type fakeMoniker struct {
	r    *fakeROT
	name string
}

func (m *fakeMoniker) DisplayName(rot.BindContext) (string, error) { return m.name, nil }
func (m *fakeMoniker) Release() { m.r.released++ }

type fakeObject struct {
	r    *fakeROT
	host *fakeHost
}

func (o *fakeObject) Release() { o.r.released++ }

type fakeHost struct {
	pids     []int
	err      error
	attached []int
}

func (h *fakeHost) Debugger() (automation.Debugger, error) {
	if h.err != nil {
		return nil, h.err
	}
	return &fakeDebugger{h}, nil
}

func (h *fakeHost) Release() {}

type fakeDebugger struct{ h *fakeHost }

func (d *fakeDebugger) LocalProcesses() (automation.Processes, error) { return d, nil }
func (d *fakeDebugger) Enumerate() (automation.ProcessEnumerator, error) {
	return &fakeProcEnum{h: d.h, pids: d.h.pids}, nil
}
func (d *fakeDebugger) Release() {}

type fakeProcEnum struct {
	h    *fakeHost
	pids []int
}

func (e *fakeProcEnum) Next() (automation.Process, error) {
	if len(e.pids) == 0 {
		return nil, nil
	}
	p := &fakeProc{h: e.h, pid: e.pids[0]}
	e.pids = e.pids[1:]
	return p, nil
}

func (e *fakeProcEnum) Release() {}

type fakeProc struct {
	h   *fakeHost
	pid int
}

func (p *fakeProc) ProcessID() (int, error) { return p.pid, nil }
func (p *fakeProc) Attach() error {
	p.h.attached = append(p.h.attached, p.pid)
	return nil
}
func (p *fakeProc) Release() {}

func newTestProvider(attached bool, r *fakeROT) *Provider {
	conf := (&config.Config{}).Defaults()
	inv := automation.NewInvoker(conf.AttachRetries, conf.AttachRetryDelay)
	inv.Sleep = func(time.Duration) {}
	return NewWithDeps(Deps{
		Attached: func() (bool, error) { return attached, nil },
		SelfPID:  func() int { return 100 },
		Walker:   proctree.NewWalker(processes, conf.HostNames, conf.MaxAncestorDepth),
		Scanner:  rot.NewScanner(r, conf.MonikerPrefix),
		Invoker:  inv,
		NewHost: func(obj rot.Object) (automation.Host, error) {
			return obj.(*fakeObject).host, nil
		},
	})
}

func TestCurrentDebugger(t *testing.T) {
	info, ok, err := newTestProvider(true, &fakeROT{}).CurrentDebugger()
	if err != nil || !ok {
		t.Fatalf("expected a debugger, got %v %v", ok, err)
	}
	if info != (debuginfo.Info{Kind: Kind, ProcessID: 400}) {
		t.Errorf("unexpected info %v", info)
	}
}

func TestCurrentDebuggerNotAttached(t *testing.T) {
	p := newTestProvider(false, &fakeROT{})
	p.deps.Walker = nil // must not be used
	info, ok, err := p.CurrentDebugger()
	if err != nil || ok || !info.IsNone() {
		t.Fatalf("expected no debugger, got %v %v %v", info, ok, err)
	}
}

func TestCurrentDebuggerDetectionError(t *testing.T) {
	p := newTestProvider(true, &fakeROT{})
	p.deps.Attached = func() (bool, error) { return false, errors.New("unsupported") }
	if _, ok, err := p.CurrentDebugger(); ok || err != nil {
		t.Fatalf("expected no debugger and no error, got %v %v", ok, err)
	}
}

func TestFindHost(t *testing.T) {
	p := newTestProvider(false, &fakeROT{})
	info, ok, _ := p.FindHost(200)
	if !ok || info.ProcessID != 400 {
		t.Errorf("expected devenv at 400, got %v %v", info, ok)
	}
	if _, ok, _ := p.FindHost(4); ok {
		t.Errorf("found a debugger above System")
	}
}

func TestAttachToDebugger(t *testing.T) {
	host := &fakeHost{pids: []int{4, 100, 200}}
	other := &fakeHost{pids: []int{100}}
	r := &fakeROT{hosts: map[string]*fakeHost{
		"!VisualStudio.DTE.17.0:400": host,
		"!VisualStudio.DTE.17.0:500": other,
		"!Other.Thing:400":           other,
	}}
	ok, err := newTestProvider(false, r).AttachToDebugger(debuginfo.Info{Kind: Kind, ProcessID: 400}, 200)
	if err != nil || !ok {
		t.Fatalf("expected success, got %v %v", ok, err)
	}
	if len(host.attached) != 1 || host.attached[0] != 200 {
		t.Errorf("host attached %v", host.attached)
	}
	if len(other.attached) != 0 {
		t.Errorf("wrong host attached %v", other.attached)
	}
	if r.acquired != r.released {
		t.Errorf("acquired %d handles, released %d", r.acquired, r.released)
	}
}

func TestAttachToDebuggerRejectsForeignInfo(t *testing.T) {
	r := &fakeROT{failBind: true}
	p := newTestProvider(false, r)
	testCases := []debuginfo.Info{
		{},
		{Kind: debuginfo.NewKind(Kind.Name()), ProcessID: 400},
		{Kind: Kind, ProcessID: 0},
		{Kind: Kind, ProcessID: -400},
	}
	for _, info := range testCases {
		ok, err := p.AttachToDebugger(info, 200)
		if ok || err != nil {
			t.Errorf("%v: expected rejection, got %v %v", info, ok, err)
		}
	}
	if r.acquired != 0 {
		t.Errorf("running object table was scanned")
	}
}

func TestAttachToDebuggerAcquireFailure(t *testing.T) {
	ok, err := newTestProvider(false, &fakeROT{failBind: true}).AttachToDebugger(debuginfo.Info{Kind: Kind, ProcessID: 400}, 200)
	if ok || err != nil {
		t.Fatalf("expected a negative result, got %v %v", ok, err)
	}
}

func TestAttachToDebuggerHostBusy(t *testing.T) {
	host := &fakeHost{pids: []int{200}, err: &automation.TransientError{Err: errors.New("RPC_E_CALL_REJECTED")}}
	r := &fakeROT{hosts: map[string]*fakeHost{"!VisualStudio.DTE.17.0:400": host}}
	ok, err := newTestProvider(false, r).AttachToDebugger(debuginfo.Info{Kind: Kind, ProcessID: 400}, 200)
	if ok || err != nil {
		t.Fatalf("expected a negative result, got %v %v", ok, err)
	}
	if r.acquired != r.released {
		t.Errorf("acquired %d handles, released %d", r.acquired, r.released)
	}
}

func TestAttachToDebuggerHostError(t *testing.T) {
	boom := errors.New("boom")
	host := &fakeHost{pids: []int{200}, err: boom}
	r := &fakeROT{hosts: map[string]*fakeHost{"!VisualStudio.DTE.17.0:400": host}}
	ok, err := newTestProvider(false, r).AttachToDebugger(debuginfo.Info{Kind: Kind, ProcessID: 400}, 200)
	if ok || err != boom {
		t.Fatalf("expected %v, got %v %v", boom, ok, err)
	}
	if r.acquired != r.released {
		t.Errorf("acquired %d handles, released %d", r.acquired, r.released)
	}
}
