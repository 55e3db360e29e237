package cmds

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// outputFormat is the value of the --format flag.
type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string {
	return string(*f)
}

func (f *outputFormat) Set(s string) error {
	switch v := outputFormat(strings.ToLower(s)); v {
	case formatText, formatJSON, formatYAML:
		*f = v
		return nil
	}
	return fmt.Errorf("unknown format %q, must be one of text, json, yaml", s)
}

func (f *outputFormat) Type() string {
	return "format"
}
