package codec

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactdesk/internal/contacts"
)

const serverJSON = `[
{"id":1,"firstName":"Ada","lastName":"Lovelace","email":"ada@math.org","phone":"123456789","ownerUsername":"alice"},
{"id":2,"firstName":"Alan","lastName":"Turing","email":"alan@bletchley.uk","phone":"987654321","ownerUsername":"alice"}
]`

func TestRedactJSON(t *testing.T) {
	art, err := RedactJSON([]byte(serverJSON))
	require.NoError(t, err)

	assert.Equal(t, "contacts.json", art.Name)
	assert.Equal(t, "application/json", art.MediaType)

	want := `[
  {
    "firstName": "Ada",
    "lastName": "Lovelace",
    "email": "ada@math.org",
    "phone": "123456789"
  },
  {
    "firstName": "Alan",
    "lastName": "Turing",
    "email": "alan@bletchley.uk",
    "phone": "987654321"
  }
]`
	if diff := cmp.Diff(want, string(art.Data)); diff != "" {
		t.Errorf("RedactJSON mismatch (-want +got):\n%s", diff)
	}
}

func TestRedactJSON_KeepsUnknownMembersInOrder(t *testing.T) {
	art, err := RedactJSON([]byte(`[{"ownerUsername":"x","tags":["a"],"id":"7","lastName":"Z"}]`))
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"tags\": [\n      \"a\"\n    ],\n    \"lastName\": \"Z\"\n  }\n]", string(art.Data))
}

func TestRedactJSON_Malformed(t *testing.T) {
	for _, raw := range []string{`{"id":1}`, `not json`, `[1,2]`, `[null]`} {
		_, err := RedactJSON([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedExport, raw)
	}

	art, err := RedactJSON([]byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(art.Data))
}

const serverXML = `<?xml version="1.0" encoding="UTF-8"?>
<contacts>
  <contact>
    <id>1</id>
    <firstName>Ada</firstName>
    <lastName>Lovelace</lastName>
    <email>ada@math.org</email>
    <phone>123456789</phone>
    <ownerUsername>alice</ownerUsername>
  </contact>
  <contact><id>2</id><firstName>Alan</firstName><ownerUsername>alice</ownerUsername></contact>
</contacts>
`

func TestRedactXML(t *testing.T) {
	art := RedactXML([]byte(serverXML))

	want := `<?xml version="1.0" encoding="UTF-8"?>
<contacts>
  <contact>
    <firstName>Ada</firstName>
    <lastName>Lovelace</lastName>
    <email>ada@math.org</email>
    <phone>123456789</phone>
    </contact>
  <contact><firstName>Alan</firstName></contact>
</contacts>
`
	if diff := cmp.Diff(want, string(art.Data)); diff != "" {
		t.Errorf("RedactXML mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "contacts.xml", art.Name)
	assert.Equal(t, "application/xml", art.MediaType)
}

func TestRedactXML_PassThroughWithoutOwnedElements(t *testing.T) {
	in := "<contacts>\n\t<contact><userid>9</userid><note>id</note></contact>\r\n</contacts>"
	assert.Equal(t, in, string(RedactXML([]byte(in)).Data))
}

func TestRedactXML_NonGreedy(t *testing.T) {
	in := "<id>1</id><keep>x</keep><id>2</id>  <keep>y</keep>"
	assert.Equal(t, "<keep>x</keep><keep>y</keep>", string(RedactXML([]byte(in)).Data))
}

func TestProjectImportJSON(t *testing.T) {
	payload := `[{"id":5,"ownerUsername":"mallory","firstName":"Ada","lastName":"Lovelace","email":"ada@math.org","phone":123456789,"extra":true},{}]`
	got, err := ProjectImportJSON([]byte(payload))
	require.NoError(t, err)

	want := []contacts.Fields{
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"},
		{},
	}
	assert.Equal(t, want, got)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ownerUsername")
	assert.NotContains(t, string(raw), `"id"`)
}

func TestProjectImportJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *ValidationError
	}{
		{"empty", "", ErrEmptyPayload},
		{"whitespace", "  \n\t", ErrEmptyPayload},
		{"not json", "{oops", ErrInvalidJSON},
		{"object", "{}", ErrSchemaMismatch},
		{"string", `"x"`, ErrSchemaMismatch},
		{"array of numbers", "[1]", ErrSchemaMismatch},
		{"bad field type", `[{"email":{"a":1}}]`, ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProjectImportJSON([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.want.Code, ve.Code)
		})
	}
}

func TestExportThenImportPreservesFields(t *testing.T) {
	art, err := RedactJSON([]byte(serverJSON))
	require.NoError(t, err)

	got, err := ProjectImportJSON(art.Data)
	require.NoError(t, err)

	var original []contacts.Contact
	require.NoError(t, json.Unmarshal([]byte(serverJSON), &original))
	require.Len(t, got, len(original))
	for i := range original {
		assert.Equal(t, original[i].Fields(), got[i])
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name, contentType string
		want              Format
	}{
		{"contacts.XML", "", FormatXML},
		{"contacts.xml", "application/octet-stream", FormatXML},
		{"data.txt", "application/json", FormatJSON},
		{"data.txt", "text/xml", FormatXML},
		{"export", "application/atom+xml", FormatXML},
		{"contacts.json", "", FormatJSON},
		{"xml.json", "", FormatJSON},
		{"", "", FormatJSON},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Detect(tt.name, tt.contentType), "%s / %s", tt.name, tt.contentType)
	}
}

func TestUpload(t *testing.T) {
	assert.Equal(t, FormatUnknown, Upload{}.Format)

	dir := t.TempDir()
	path := filepath.Join(dir, "Backup.XML")
	require.NoError(t, os.WriteFile(path, []byte("<contacts/>"), 0644))

	up, err := ReadUpload(path)
	require.NoError(t, err)
	assert.Equal(t, "Backup.XML", up.Name)
	assert.Equal(t, FormatXML, up.Format)
	assert.Equal(t, []byte("<contacts/>"), up.Data)

	_, err = ReadUpload(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XML ")
	require.NoError(t, err)
	assert.Equal(t, FormatXML, f)
	assert.Equal(t, "xml", f.String())

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}

func TestArtifactSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	art := RedactXML([]byte("<contacts/>"))

	path, err := art.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "contacts.xml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<contacts/>", string(data))
}
