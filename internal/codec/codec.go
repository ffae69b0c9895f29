// Package codec converts contact collections to and from the JSON and XML
// wire payloads, removing server-owned fields in both directions.
package codec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is a serialization format.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatXML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	default:
		return "unknown"
	}
}

// ParseFormat parses "json" or "xml", ignoring case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	}
	return FormatUnknown, fmt.Errorf("unknown format %q (valid: json, xml)", s)
}

// Media types of the produced artifacts.
const (
	MediaTypeJSON = "application/json"
	MediaTypeXML  = "application/xml"
)

// Artifact is a downloadable export file.
type Artifact struct {
	Name      string
	MediaType string
	Data      []byte
}

// Save writes the artifact into dir and returns the file path.
func (a *Artifact) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, a.Name)
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", a.Name, err)
	}
	return path, nil
}

// ValidationError is a malformed import payload, detected before any
// network call.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyPayload   = &ValidationError{Code: "empty_payload", Message: "nothing to import"}
	ErrInvalidJSON    = &ValidationError{Code: "invalid_json", Message: "invalid JSON"}
	ErrSchemaMismatch = &ValidationError{Code: "schema_mismatch", Message: "expected an array of contact objects"}
	ErrNoFormat       = &ValidationError{Code: "no_format", Message: "file type not recognized"}
)
