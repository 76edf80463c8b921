package types

import (
	"bytes"
	"fmt"

	"sigs.k8s.io/yaml"
)

// LoadDocument decodes a JSON or YAML rule document. Input starting with '{'
// is JSON and keeps its key order; anything else is YAML, converted to JSON
// first, which sorts object keys.
func LoadDocument(data []byte) (*Document, error) {
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDocumentTooLarge, len(data))
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	if trimmed[0] == '{' {
		return ParseDocument(trimmed)
	}
	converted, err := yaml.YAMLToJSON(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return ParseDocument(converted)
}
