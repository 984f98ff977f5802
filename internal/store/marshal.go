package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/ctorder/internal/ir"
)

// marshalSpecs converts a declaration set to JSON TEXT for storage.
// Map keys come out sorted and HTML escaping is disabled, so equal sets
// store equal text.
func marshalSpecs(specs []ir.ClassSpec) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(specs); err != nil {
		return "", fmt.Errorf("marshal specs: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshalSpecs parses JSON TEXT from the database.
func unmarshalSpecs(data string) ([]ir.ClassSpec, error) {
	var specs []ir.ClassSpec
	if err := json.Unmarshal([]byte(data), &specs); err != nil {
		return nil, fmt.Errorf("unmarshal specs: %w", err)
	}
	if specs == nil {
		specs = []ir.ClassSpec{}
	}
	return specs, nil
}
