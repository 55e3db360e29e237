package rot

import (
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

var (
	ole32             = windows.NewLazySystemDLL("ole32.dll")
	procCreateBindCtx = ole32.NewProc("CreateBindCtx")
)

// Vtables of the COM interfaces used to walk the running object table,
// in declaration order (objidl.h).

type iBindCtxVtbl struct {
	ole.IUnknownVtbl
	RegisterObjectBound   uintptr
	RevokeObjectBound     uintptr
	ReleaseBoundObjects   uintptr
	SetBindOptions        uintptr
	GetBindOptions        uintptr
	GetRunningObjectTable uintptr
	RegisterObjectParam   uintptr
	GetObjectParam        uintptr
	EnumObjectParam       uintptr
	RevokeObjectParam     uintptr
}

type iRunningObjectTableVtbl struct {
	ole.IUnknownVtbl
	Register            uintptr
	Revoke              uintptr
	IsRunning           uintptr
	GetObject           uintptr
	NoteChangeTime      uintptr
	GetTimeOfLastChange uintptr
	EnumRunning         uintptr
}

type iEnumMonikerVtbl struct {
	ole.IUnknownVtbl
	Next  uintptr
	Skip  uintptr
	Reset uintptr
	Clone uintptr
}

type iMonikerVtbl struct {
	ole.IUnknownVtbl
	GetClassID          uintptr // IPersist
	IsDirty             uintptr // IPersistStream
	Load                uintptr
	Save                uintptr
	GetSizeMax          uintptr
	BindToObject        uintptr // IMoniker
	BindToStorage       uintptr
	Reduce              uintptr
	ComposeWith         uintptr
	Enum                uintptr
	IsEqual             uintptr
	Hash                uintptr
	IsRunning           uintptr
	GetTimeOfLastChange uintptr
	Inverse             uintptr
	CommonPrefixWith    uintptr
	RelativePathTo      uintptr
	GetDisplayName      uintptr
	ParseDisplayName    uintptr
	IsSystemMoniker     uintptr
}

func hresult(hr uintptr) error {
	if int32(hr) < 0 {
		return ole.NewError(hr)
	}
	return nil
}

type comBroker struct{}

// NewBroker returns the Broker of the running object table of this system.
// COM must be initialized on the calling thread.
func NewBroker() Broker {
	return comBroker{}
}

func (comBroker) BindContext() (BindContext, error) {
	var unk *ole.IUnknown
	hr, _, _ := procCreateBindCtx.Call(0, uintptr(unsafe.Pointer(&unk)))
	if err := hresult(hr); err != nil {
		return nil, err
	}
	if unk == nil {
		return nil, errNilHandle
	}
	return &comBindContext{unk}, nil
}

type comBindContext struct {
	unk *ole.IUnknown
}

func (bc *comBindContext) vtbl() *iBindCtxVtbl {
	return (*iBindCtxVtbl)(unsafe.Pointer(bc.unk.RawVTable))
}

func (bc *comBindContext) RunningObjectTable() (Table, error) {
	var unk *ole.IUnknown
	hr, _, _ := syscall.SyscallN(bc.vtbl().GetRunningObjectTable, uintptr(unsafe.Pointer(bc.unk)), uintptr(unsafe.Pointer(&unk)))
	if err := hresult(hr); err != nil {
		return nil, err
	}
	if unk == nil {
		return nil, errNilHandle
	}
	return &comTable{unk}, nil
}

func (bc *comBindContext) Release() {
	bc.unk.Release()
}

type comTable struct {
	unk *ole.IUnknown
}

func (t *comTable) vtbl() *iRunningObjectTableVtbl {
	return (*iRunningObjectTableVtbl)(unsafe.Pointer(t.unk.RawVTable))
}

func (t *comTable) EnumRunning() (Enumerator, error) {
	var unk *ole.IUnknown
	hr, _, _ := syscall.SyscallN(t.vtbl().EnumRunning, uintptr(unsafe.Pointer(t.unk)), uintptr(unsafe.Pointer(&unk)))
	if err := hresult(hr); err != nil {
		return nil, err
	}
	if unk == nil {
		return nil, errNilHandle
	}
	return &comEnumerator{unk}, nil
}

func (t *comTable) GetObject(m Moniker) (Object, error) {
	cm := m.(*comMoniker)
	var unk *ole.IUnknown
	hr, _, _ := syscall.SyscallN(t.vtbl().GetObject, uintptr(unsafe.Pointer(t.unk)), uintptr(unsafe.Pointer(cm.unk)), uintptr(unsafe.Pointer(&unk)))
	if err := hresult(hr); err != nil {
		return nil, err
	}
	if unk == nil {
		return nil, errNilHandle
	}
	return &ComObject{unk}, nil
}

func (t *comTable) Release() {
	t.unk.Release()
}

type comEnumerator struct {
	unk *ole.IUnknown
}

func (e *comEnumerator) Next() (Moniker, error) {
	vtbl := (*iEnumMonikerVtbl)(unsafe.Pointer(e.unk.RawVTable))
	var unk *ole.IUnknown
	var fetched uint32
	hr, _, _ := syscall.SyscallN(vtbl.Next, uintptr(unsafe.Pointer(e.unk)), 1, uintptr(unsafe.Pointer(&unk)), uintptr(unsafe.Pointer(&fetched)))
	if err := hresult(hr); err != nil {
		return nil, err
	}
	// S_FALSE: end of the table.
	if hr != 0 || fetched == 0 || unk == nil {
		return nil, nil
	}
	return &comMoniker{unk}, nil
}

func (e *comEnumerator) Release() {
	e.unk.Release()
}

type comMoniker struct {
	unk *ole.IUnknown
}

func (m *comMoniker) DisplayName(bc BindContext) (string, error) {
	vtbl := (*iMonikerVtbl)(unsafe.Pointer(m.unk.RawVTable))
	cbc := bc.(*comBindContext)
	var p *uint16
	hr, _, _ := syscall.SyscallN(vtbl.GetDisplayName, uintptr(unsafe.Pointer(m.unk)), uintptr(unsafe.Pointer(cbc.unk)), 0, uintptr(unsafe.Pointer(&p)))
	if err := hresult(hr); err != nil {
		return "", err
	}
	if p == nil {
		return "", nil
	}
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(p)))
	return windows.UTF16PtrToString(p), nil
}

func (m *comMoniker) Release() {
	m.unk.Release()
}

// ComObject is an object of the running object table.
type ComObject struct {
	Unknown *ole.IUnknown
}

// Release releases the reference to the object held by o.
func (o *ComObject) Release() {
	o.Unknown.Release()
}
