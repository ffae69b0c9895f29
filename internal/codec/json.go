package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"contactdesk/internal/contacts"
	"contactdesk/internal/logging"
)

// Keys the server owns. They never leave or enter the client.
var serverOwnedKeys = map[string]bool{
	"id":            true,
	"ownerUsername": true,
}

// ErrMalformedExport is returned when the server's JSON export is not an
// array of objects.
var ErrMalformedExport = errors.New("server returned a malformed JSON export")

type member struct {
	key   string
	value json.RawMessage
}

// record is a JSON object that keeps its members in document order.
type record []member

func (r *record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	var out record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, member{key: key, value: v})
	}
	*r = out
	return nil
}

func (r record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(m.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// redacted returns r without the server-owned keys.
func (r record) redacted() record {
	out := make(record, 0, len(r))
	for _, m := range r {
		if !serverOwnedKeys[m.key] {
			out = append(out, m)
		}
	}
	return out
}

// RedactJSON turns the server's JSON export into contacts.json: every record
// loses id and ownerUsername, other members keep their order, and the result
// is indented with two spaces.
func RedactJSON(raw []byte) (*Artifact, error) {
	var records []record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
	}
	if records == nil {
		records = []record{}
	}
	for i := range records {
		records[i] = records[i].redacted()
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	logging.CodecDebug("redacted JSON export: %d records, %d bytes", len(records), len(data))
	return &Artifact{Name: "contacts.json", MediaType: MediaTypeJSON, Data: data}, nil
}

// ProjectImportJSON validates an import payload and projects each record to
// its editable fields. Any id or ownerUsername in the payload is dropped.
func ProjectImportJSON(payload []byte) ([]contacts.Fields, error) {
	if strings.TrimSpace(string(payload)) == "" {
		return nil, ErrEmptyPayload
	}

	var parsed any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	items, ok := parsed.([]any)
	if !ok {
		return nil, ErrSchemaMismatch
	}

	out := make([]contacts.Fields, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrSchemaMismatch, i)
		}
		f, err := fieldsOf(obj)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrSchemaMismatch, i, err)
		}
		out = append(out, f)
	}
	logging.CodecDebug("projected %d import records", len(out))
	return out, nil
}

func fieldsOf(obj map[string]any) (contacts.Fields, error) {
	var f contacts.Fields
	for key, dst := range map[string]*string{
		"firstName": &f.FirstName,
		"lastName":  &f.LastName,
		"email":     &f.Email,
		"phone":     &f.Phone,
	} {
		v, present := obj[key]
		if !present || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			*dst = val
		case float64:
			// e.g. "phone": 123456789
			*dst = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			return f, fmt.Errorf("field %q must be a string", key)
		}
	}
	return f, nil
}
