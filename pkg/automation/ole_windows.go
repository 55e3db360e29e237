package automation

import (
	"fmt"
	"runtime"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// DISPID_NEWENUM
const dispidNewEnum = -4

// sFalse is returned by CoInitializeEx when COM is already initialized on
// the calling thread.
const sFalse = 1

// transient wraps the errors reported by the host through COM, leaving any
// other error untouched.
func transient(err error) error {
	if _, ok := err.(*ole.OleError); ok {
		return &TransientError{Err: err}
	}
	return err
}

// WithApartment runs fn on a thread locked to the calling goroutine, with
// COM initialized in a single threaded apartment.
func WithApartment(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		oleErr, ok := err.(*ole.OleError)
		if !ok || oleErr.Code() != sFalse {
			return fmt.Errorf("could not initialize COM: %w", err)
		}
	}
	defer ole.CoUninitialize()
	return fn()
}

// dispatch holds a reference to an IDispatch interface through the VARIANT
// it was returned in.
type dispatch struct {
	v *ole.VARIANT
}

func newDispatch(v *ole.VARIANT, member string) (dispatch, error) {
	if v.VT != ole.VT_DISPATCH || v.ToIDispatch() == nil {
		v.Clear()
		return dispatch{}, fmt.Errorf("%s is not an object (vt=%d)", member, v.VT)
	}
	return dispatch{v}, nil
}

func (d dispatch) get(member string) (dispatch, error) {
	v, err := oleutil.GetProperty(d.v.ToIDispatch(), member)
	if err != nil {
		return dispatch{}, transient(err)
	}
	return newDispatch(v, member)
}

func (d dispatch) Release() {
	d.v.Clear()
}

type oleHost struct {
	disp *ole.IDispatch
}

// NewHost returns the Host backed by the automation object unk. The host
// holds its own reference to the object.
func NewHost(unk *ole.IUnknown) (Host, error) {
	disp, err := unk.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, transient(err)
	}
	return &oleHost{disp}, nil
}

func (h *oleHost) Debugger() (Debugger, error) {
	v, err := oleutil.GetProperty(h.disp, "Debugger")
	if err != nil {
		return nil, transient(err)
	}
	d, err := newDispatch(v, "Debugger")
	if err != nil {
		return nil, err
	}
	return oleDebugger{d}, nil
}

func (h *oleHost) Release() {
	h.disp.Release()
}

type oleDebugger struct {
	dispatch
}

func (d oleDebugger) LocalProcesses() (Processes, error) {
	lps, err := d.get("LocalProcesses")
	if err != nil {
		return nil, err
	}
	return oleProcesses{lps}, nil
}

type oleProcesses struct {
	dispatch
}

func (p oleProcesses) Enumerate() (ProcessEnumerator, error) {
	v, err := p.v.ToIDispatch().Invoke(dispidNewEnum, ole.DISPATCH_METHOD|ole.DISPATCH_PROPERTYGET)
	if err != nil {
		return nil, transient(err)
	}
	defer v.Clear()
	unk := v.ToIUnknown()
	if unk == nil {
		return nil, fmt.Errorf("LocalProcesses is not enumerable (vt=%d)", v.VT)
	}
	enum, err := unk.IEnumVARIANT(ole.IID_IEnumVariant)
	if err != nil {
		return nil, transient(err)
	}
	return &oleEnumerator{enum}, nil
}

type oleEnumerator struct {
	enum *ole.IEnumVARIANT
}

func (e *oleEnumerator) Next() (Process, error) {
	item, n, err := e.enum.Next(1)
	if err != nil {
		return nil, transient(err)
	}
	if n == 0 {
		return nil, nil
	}
	d, err := newDispatch(&item, "LocalProcesses item")
	if err != nil {
		return nil, err
	}
	return oleProcess{d}, nil
}

func (e *oleEnumerator) Release() {
	e.enum.Release()
}

type oleProcess struct {
	dispatch
}

func (p oleProcess) ProcessID() (int, error) {
	v, err := oleutil.GetProperty(p.v.ToIDispatch(), "ProcessID")
	if err != nil {
		return 0, transient(err)
	}
	defer v.Clear()
	switch id := v.Value().(type) {
	case int32:
		return int(id), nil
	case int64:
		return int(id), nil
	case uint32:
		return int(id), nil
	default:
		return 0, fmt.Errorf("unexpected ProcessID value %v (vt=%d)", v.Value(), v.VT)
	}
}

func (p oleProcess) Attach() error {
	v, err := oleutil.CallMethod(p.v.ToIDispatch(), "Attach")
	if err != nil {
		return transient(err)
	}
	v.Clear()
	return nil
}
