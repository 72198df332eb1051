// Package help loads the predictor's help/metadata document for the /help
// endpoint.
package help

import (
	"encoding/json"
	"fmt"
	"os"
)

// Loader reads the help document from disk.
//
// The file is read on every request so a redeployed document is picked up
// without a restart; the document is small and the endpoint is not hot.
type Loader struct {
	path string
}

// NewLoader creates a loader for the given help file path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and parses the help document.
func (l *Loader) Load() (map[string]interface{}, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read help file: %w", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse help file: %w", err)
	}
	return doc, nil
}
