// Package debuginfo describes a debugger attached to a running process.
//
// An Info pairs the Kind of the provider that produced it with the process
// id of the debugger host. Info values are built fresh by a provider on
// every discovery and can be carried to another process through their JSON
// representation (see Marshal and Unmarshal).
package debuginfo

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the provider that owns an Info.
// Kinds compare by identity: two kinds created with the same name are
// different kinds.
type Kind struct {
	name string
}

// NewKind returns a new, distinct Kind.
func NewKind(name string) *Kind {
	return &Kind{name: name}
}

// Name returns the name the kind was created with.
func (k *Kind) Name() string {
	if k == nil {
		return ""
	}
	return k.name
}

func (k *Kind) String() string {
	if k == nil {
		return "null"
	}
	return k.name
}

// Info describes a debugger of kind Kind running as process ProcessID.
// The zero value means no debugger.
type Info struct {
	Kind      *Kind
	ProcessID int
}

// IsNone reports whether i is the "no debugger" value.
func (i Info) IsNone() bool {
	return i.Kind == nil
}

// IsValid reports whether i can be used to attach a process.
func (i Info) IsValid() bool {
	return i.Kind != nil && i.ProcessID > 0
}

func (i Info) String() string {
	return fmt.Sprintf("{kind=%s, processId=%d}", i.Kind, i.ProcessID)
}

// record is the external representation of an Info.
type record struct {
	DebuggerName string `json:"debuggerName,omitempty"`
	ProcessID    int    `json:"processId"`
}

// Marshal returns the JSON representation of i.
func Marshal(i Info) ([]byte, error) {
	return json.Marshal(record{DebuggerName: i.Kind.Name(), ProcessID: i.ProcessID})
}

// Unmarshal decodes an Info previously encoded by Marshal. The debugger
// name is mapped back to a Kind by resolve; an empty name, or one resolve
// does not recognize, decodes to the "no debugger" value.
func Unmarshal(data []byte, resolve func(name string) *Kind) (Info, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Info{}, fmt.Errorf("could not decode debugger info: %w", err)
	}
	if r.DebuggerName == "" || resolve == nil {
		return Info{}, nil
	}
	k := resolve(r.DebuggerName)
	if k == nil {
		return Info{}, nil
	}
	return Info{Kind: k, ProcessID: r.ProcessID}, nil
}
