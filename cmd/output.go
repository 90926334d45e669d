package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatJSON, "", formatYAML, "yml":
		return nil
	default:
		return fmt.Errorf("unknown output format %q: use %s or %s", format, formatJSON, formatYAML)
	}
}

func writeOutput(w io.Writer, format string, v any) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	switch format {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return nil
}
