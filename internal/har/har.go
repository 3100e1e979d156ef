// Package har imports HTTP Archive (HAR 1.2) captures as load-test targets.
// Only the fields the converter needs are modeled.
package har

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// HAR is the top-level archive document.
type HAR struct {
	Log *Log `json:"log"`
}

// Log holds the captured entries.
type Log struct {
	Version string   `json:"version"`
	Entries []*Entry `json:"entries"`
}

// Entry is one captured request/response pair.
type Entry struct {
	StartedDateTime string   `json:"startedDateTime"`
	Request         *Request `json:"request"`
}

// Request is the captured HTTP request.
type Request struct {
	Method  string    `json:"method"`
	URL     string    `json:"url"`
	Headers []*Header `json:"headers"`
}

// Header is a name-value pair.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ParseFile reads and parses a HAR file from disk.
func ParseFile(path string) (*HAR, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open HAR file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads and parses a HAR document from r.
func Parse(r io.Reader) (*HAR, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read HAR data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty HAR data")
	}

	var doc HAR
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse HAR JSON: %w", err)
	}
	if doc.Log == nil {
		return nil, fmt.Errorf("invalid HAR: missing log field")
	}
	return &doc, nil
}
