package devserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"contactdesk/internal/contacts"
	"contactdesk/internal/session"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(
		WithBcryptCost(bcrypt.MinCost),
		WithUser("alice", "pw", session.RoleUser),
		WithUser("bob", "pw", session.RoleUser),
		WithUser("root", "pw", session.RoleAdmin),
	)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

var ada = contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"}

func TestLoginAndMe(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := call(t, ts, http.MethodPost, "/auth/login", "", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body)

	status, body = call(t, ts, http.MethodPost, "/auth/login", "", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, status)
	var lr struct{ Token string }
	require.NoError(t, json.Unmarshal([]byte(body), &lr))
	require.NotEmpty(t, lr.Token)

	status, body = call(t, ts, http.MethodGet, "/auth/me", lr.Token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"username":"alice","role":"ROLE_USER"}`, body)

	status, _ = call(t, ts, http.MethodGet, "/auth/me", "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterConflict(t *testing.T) {
	_, ts := newTestServer(t)

	status, _ := call(t, ts, http.MethodPost, "/auth/register", "", `{"username":"carol","password":"pw"}`)
	assert.Equal(t, http.StatusOK, status)

	status, body := call(t, ts, http.MethodPost, "/auth/register", "", `{"username":"carol","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username already exists", body)
}

func TestOwnershipAndAdminScope(t *testing.T) {
	s, ts := newTestServer(t)
	aliceIDs := s.Seed("alice", ada)
	s.Seed("bob", contacts.Fields{FirstName: "Bo", LastName: "B", Email: "b@b", Phone: "111111111"})

	bob := s.IssueToken("bob")
	root := s.IssueToken("root")

	status, body := call(t, ts, http.MethodGet, "/api/contacts", bob, "")
	require.Equal(t, http.StatusOK, status)
	var list []contacts.Contact
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].OwnerUsername)

	status, _ = call(t, ts, http.MethodDelete, "/api/contacts/"+string(aliceIDs[0]), bob, "")
	assert.Equal(t, http.StatusForbidden, status)

	_, body = call(t, ts, http.MethodGet, "/api/contacts", root, "")
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	assert.Len(t, list, 2)

	status, body = call(t, ts, http.MethodPost, "/api/contacts", root, `{"firstName":"X","lastName":"Y","email":"x@y","phone":"123456789"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin cannot create contacts", body)

	status, _ = call(t, ts, http.MethodPost, "/api/contacts/import/json", root, `[]`)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, ts, http.MethodDelete, "/api/contacts/"+string(aliceIDs[0]), root, "")
	assert.Equal(t, http.StatusNoContent, status)
	assert.Empty(t, s.Contacts("alice"))
}

func TestCreateValidation(t *testing.T) {
	s, ts := newTestServer(t)
	tok := s.IssueToken("alice")

	status, body := call(t, ts, http.MethodPost, "/api/contacts", tok, `{"firstName":"A","lastName":"B","email":"nope","phone":"12"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "email is malformed; phone must be exactly 9 digits", body)

	status, body = call(t, ts, http.MethodPost, "/api/contacts", tok, `{"firstName":"Ada","lastName":"Lovelace","email":"ada@math.org","phone":"123456789"}`)
	require.Equal(t, http.StatusOK, status)
	var c contacts.Contact
	require.NoError(t, json.Unmarshal([]byte(body), &c))
	assert.False(t, c.ID.IsDraft())
	assert.Equal(t, "alice", c.OwnerUsername)
}

func TestExportIncludesServerFields(t *testing.T) {
	s, ts := newTestServer(t)
	s.Seed("alice", ada)
	tok := s.IssueToken("alice")

	_, body := call(t, ts, http.MethodGet, "/api/contacts/export/json", tok, "")
	assert.Contains(t, body, `"ownerUsername": "alice"`)
	assert.Contains(t, body, `"id": 1`)

	_, body = call(t, ts, http.MethodGet, "/api/contacts/export/xml", tok, "")
	assert.Contains(t, body, "<contacts>")
	assert.Contains(t, body, "<id>1</id>")
	assert.Contains(t, body, "<ownerUsername>alice</ownerUsername>")
}

func TestImportXMLReplaces(t *testing.T) {
	s, ts := newTestServer(t)
	s.Seed("alice", ada)
	s.Seed("bob", ada)
	tok := s.IssueToken("alice")

	doc := `<contacts><contact><firstName>Alan</firstName><lastName>Turing</lastName><email>alan@b.uk</email><phone>987654321</phone></contact></contacts>`
	status, body := call(t, ts, http.MethodPost, "/api/contacts/import/xml", tok, doc)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Imported XML", body)

	got := s.Contacts("alice")
	require.Len(t, got, 1)
	assert.Equal(t, "Turing", got[0].LastName)
	assert.Len(t, s.Contacts("bob"), 1)

	status, _ = call(t, ts, http.MethodPost, "/api/contacts/import/xml", tok, "<contacts><contact>")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Len(t, s.Contacts("alice"), 1)
}

func TestFaultInjectionAndMetrics(t *testing.T) {
	s, ts := newTestServer(t)
	tok := s.IssueToken("alice")

	s.Fail(http.MethodGet, "/api/contacts", http.StatusForbidden, "nope")
	status, _ := call(t, ts, http.MethodGet, "/api/contacts", tok, "")
	assert.Equal(t, http.StatusForbidden, status)

	s.Heal()
	status, _ = call(t, ts, http.MethodGet, "/api/contacts", tok, "")
	assert.Equal(t, http.StatusOK, status)

	s.RevokeTokens()
	status, _ = call(t, ts, http.MethodGet, "/api/contacts", tok, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, int64(3), s.Requests())

	_, body := call(t, ts, http.MethodGet, "/metrics", "", "")
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/contacts",status="403"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/contacts",status="200"} 1`)
	assert.Equal(t, int64(3), s.Requests())
}
