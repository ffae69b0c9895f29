package codec

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Detect classifies an upload by name and reported content type only.
func Detect(name, contentType string) Format {
	if strings.HasSuffix(strings.ToLower(name), ".xml") || strings.Contains(strings.ToLower(contentType), "xml") {
		return FormatXML
	}
	return FormatJSON
}

// Upload is a chosen import file. The zero value means no file was chosen.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
	Format      Format
}

// NewUpload classifies the file on construction.
func NewUpload(name, contentType string, data []byte) Upload {
	return Upload{Name: name, ContentType: contentType, Data: data, Format: Detect(name, contentType)}
}

// ReadUpload loads path, deriving the content type from its extension.
func ReadUpload(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read import file: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	return NewUpload(filepath.Base(path), ct, data), nil
}
