// Package contacts holds the contact model and the in-memory canonical list.
package contacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque server-assigned identifier. The zero value marks a draft.
// The service emits numeric ids; string ids are accepted too.
type ID string

// IsDraft reports whether the id is unassigned.
func (id ID) IsDraft() bool {
	return id == ""
}

func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts a JSON number, string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("contact id: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// MarshalJSON writes integral ids as numbers and anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Contact is a record as returned by the service.
type Contact struct {
	ID            ID     `json:"id,omitempty"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	OwnerUsername string `json:"ownerUsername,omitempty"`
}

// Fields is the client-authored projection of a contact. It has no id or
// owner, so it is the only shape sent on create, update and import.
type Fields struct {
	FirstName string `json:"firstName" xml:"firstName"`
	LastName  string `json:"lastName" xml:"lastName"`
	Email     string `json:"email" xml:"email"`
	Phone     string `json:"phone" xml:"phone"`
}

// Fields projects the editable fields.
func (c Contact) Fields() Fields {
	return Fields{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Phone: c.Phone}
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Empty reports whether every field is blank.
func (f Fields) Empty() bool {
	return f == Fields{}
}
