package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"contactdesk/internal/contacts"
	"contactdesk/internal/devserver"
	"contactdesk/internal/session"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func setup(t *testing.T) (*devserver.Server, *httptest.Server) {
	t.Helper()
	srv := devserver.New(
		devserver.WithBcryptCost(bcrypt.MinCost),
		devserver.WithUser("alice", "secret", session.RoleUser),
		devserver.WithUser("root", "secret", session.RoleAdmin),
	)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestLoginAndMe(t *testing.T) {
	_, ts := setup(t)
	ctx := context.Background()

	mgr := session.NewManager(nil)
	c := New(ts.URL+"/", mgr)

	_, err := c.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	tok, err := c.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	require.NoError(t, mgr.Begin("alice", tok))

	id, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, Identity{Username: "alice", Role: session.RoleUser}, id)
}

func TestRegisterConflict(t *testing.T) {
	_, ts := setup(t)
	c := New(ts.URL, nil)

	require.NoError(t, c.Register(context.Background(), "newbie", "pw"))

	err := c.Register(context.Background(), "newbie", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, "Username already exists", Detail(err))
}

func TestContactCRUD(t *testing.T) {
	srv, ts := setup(t)
	ctx := context.Background()
	c := New(ts.URL, staticToken(srv.IssueToken("alice")), WithTimeout(5*time.Second))

	created, err := c.CreateContact(ctx, contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	require.NoError(t, err)
	assert.False(t, created.ID.IsDraft())
	assert.Equal(t, "alice", created.OwnerUsername)

	updated, err := c.UpdateContact(ctx, created.ID, contacts.Fields{FirstName: "Ada", LastName: "King", Email: "ada@math.org", Phone: "123456789"})
	require.NoError(t, err)
	assert.Equal(t, "King", updated.LastName)
	assert.Equal(t, created.ID, updated.ID)

	list, err := c.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "King", list[0].LastName)

	require.NoError(t, c.DeleteContact(ctx, created.ID))
	list, err = c.ListContacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = c.DeleteContact(ctx, created.ID)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
}

func TestStatusMapping(t *testing.T) {
	srv, ts := setup(t)
	ctx := context.Background()
	c := New(ts.URL, staticToken(srv.IssueToken("alice")))

	srv.Fail(http.MethodGet, "/api/contacts", http.StatusForbidden, "Forbidden for you")
	_, err := c.ListContacts(ctx)
	assert.True(t, IsPermission(err))
	assert.False(t, IsAuth(err))
	assert.Equal(t, "Forbidden for you", Detail(err))

	srv.Fail(http.MethodGet, "/api/contacts", http.StatusInternalServerError, "boom")
	_, err = c.ListContacts(ctx)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "boom", Detail(err))

	srv.Heal()
	srv.RevokeTokens()
	_, err = c.ListContacts(ctx)
	assert.True(t, IsAuth(err))
}

func TestUnauthenticatedWithoutToken(t *testing.T) {
	_, ts := setup(t)
	_, err := New(ts.URL, staticToken("")).ListContacts(context.Background())
	assert.True(t, IsAuth(err))
}

func TestTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url, staticToken("x")).ListContacts(context.Background())
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Status)
	assert.NotNil(t, errors.Unwrap(se))
	assert.NotEmpty(t, Detail(err))
}

func TestExportAndImport(t *testing.T) {
	srv, ts := setup(t)
	ctx := context.Background()
	srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	c := New(ts.URL, staticToken(srv.IssueToken("alice")))

	raw, err := c.ExportJSON(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ownerUsername"`)

	rawXML, err := c.ExportXML(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(rawXML), "<ownerUsername>alice</ownerUsername>")

	msg, err := c.ImportJSON(ctx, []contacts.Fields{{FirstName: "Alan", LastName: "Turing", Email: "alan@b.uk", Phone: "987654321"}})
	require.NoError(t, err)
	assert.Equal(t, "Imported JSON", msg)
	assert.Equal(t, "Turing", srv.Contacts("alice")[0].LastName)

	msg, err = c.ImportXML(ctx, []byte(`<contacts></contacts>`))
	require.NoError(t, err)
	assert.Equal(t, "Imported XML", msg)
	assert.Empty(t, srv.Contacts("alice"))

	_, err = c.ImportXML(ctx, []byte(`<contacts><contact><firstName>x</firstName></contact></contacts>`))
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Contains(t, Detail(err), "contact 1:")
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "", Detail(nil))
	assert.Equal(t, "plain", Detail(errors.New("plain")))
	assert.Equal(t, "GET /x: unauthorized", Detail(&AuthError{Method: "GET", Path: "/x"}))
}
