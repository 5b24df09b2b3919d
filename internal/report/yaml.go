package report

import (
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/ppiankov/rangerwatch/internal/policy"
)

// WriteJSON writes the policies as received, as an indented JSON array.
func WriteJSON(w io.Writer, records []policy.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteYAML writes the policies as a YAML list, keeping the service's JSON
// field names.
func WriteYAML(w io.Writer, records []policy.Record) error {
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling policies: %w", err)
	}
	out, err := yaml.JSONToYAML(b)
	if err != nil {
		return fmt.Errorf("converting to YAML: %w", err)
	}
	_, err = w.Write(out)
	return err
}
