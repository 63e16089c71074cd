package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// outputFormat is the --output flag value
type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(s string) error {
	switch outputFormat(strings.ToLower(s)) {
	case formatText, formatJSON, formatYAML:
		*f = outputFormat(strings.ToLower(s))
		return nil
	default:
		return errors.Errorf("invalid output format %q: expected text, json or yaml", s)
	}
}

func (f *outputFormat) Type() string { return "format" }

// structured reports whether output is machine readable.
func (f outputFormat) structured() bool { return f == formatJSON || f == formatYAML }

// write encodes v to w in the structured format.
func (f outputFormat) write(w io.Writer, v interface{}) error {
	switch f {
	case formatJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode json")
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode yaml")
		}
		return enc.Close()
	default:
		return errors.Errorf("format %q is not structured", f)
	}
}

// kindOf returns the kind name of typed pipeline errors, or "" for others.
func kindOf(err error) string {
	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return ""
}
