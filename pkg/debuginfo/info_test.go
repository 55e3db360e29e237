package debuginfo

import (
	"testing"
)

func TestKindIdentity(t *testing.T) {
	a := NewKind("vs")
	b := NewKind("vs")
	if a == b {
		t.Fatalf("kinds with the same name must be distinct")
	}
	if a.Name() != b.Name() {
		t.Fatalf("expected equal names, got %q and %q", a.Name(), b.Name())
	}
	if (Info{Kind: a, ProcessID: 1}) == (Info{Kind: b, ProcessID: 1}) {
		t.Errorf("infos with different kinds compared equal")
	}
}

func TestInfoValidity(t *testing.T) {
	k := NewKind("vs")
	testCases := []struct {
		info  Info
		none  bool
		valid bool
	}{
		{Info{}, true, false},
		{Info{ProcessID: 42}, true, false},
		{Info{Kind: k}, false, false},
		{Info{Kind: k, ProcessID: -1}, false, false},
		{Info{Kind: k, ProcessID: 42}, false, true},
	}
	for _, tc := range testCases {
		if got := tc.info.IsNone(); got != tc.none {
			t.Errorf("%v: IsNone() = %v, expected %v", tc.info, got, tc.none)
		}
		if got := tc.info.IsValid(); got != tc.valid {
			t.Errorf("%v: IsValid() = %v, expected %v", tc.info, got, tc.valid)
		}
	}
}

func TestInfoString(t *testing.T) {
	if s := (Info{}).String(); s != "{kind=null, processId=0}" {
		t.Errorf("unexpected rendering of the empty info: %q", s)
	}
	if s := (Info{Kind: NewKind("vs"), ProcessID: 1234}).String(); s != "{kind=vs, processId=1234}" {
		t.Errorf("unexpected rendering: %q", s)
	}
}

func TestUnmarshal(t *testing.T) {
	vs := NewKind("vs")
	resolve := func(name string) *Kind {
		if name == "vs" {
			return vs
		}
		return nil
	}

	data, err := Marshal(Info{Kind: vs, ProcessID: 1234})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"debuggerName":"vs","processId":1234}` {
		t.Fatalf("unexpected encoding %s", data)
	}

	testCases := []struct {
		in   string
		out  Info
		fail bool
	}{
		{string(data), Info{Kind: vs, ProcessID: 1234}, false},
		{`{"processId":1234}`, Info{}, false},
		{`{"debuggerName":"","processId":1234}`, Info{}, false},
		{`{"debuggerName":"gdb","processId":1234}`, Info{}, false},
		{`{"debuggerName":`, Info{}, true},
	}
	for _, tc := range testCases {
		out, err := Unmarshal([]byte(tc.in), resolve)
		if tc.fail {
			if err == nil {
				t.Errorf("%s: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.in, err)
			continue
		}
		if out != tc.out {
			t.Errorf("%s: got %v, expected %v", tc.in, out, tc.out)
		}
	}
}
