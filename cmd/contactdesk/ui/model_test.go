package ui

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"contactdesk/internal/client"
	"contactdesk/internal/contacts"
	"contactdesk/internal/controller"
	"contactdesk/internal/devserver"
	"contactdesk/internal/session"
)

type harness struct {
	t      *testing.T
	m      Model
	srv    *devserver.Server
	sess   *session.Manager
	themes []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := devserver.New(
		devserver.WithBcryptCost(bcrypt.MinCost),
		devserver.WithUser("alice", "pw", session.RoleUser),
		devserver.WithUser("root", "pw", session.RoleAdmin),
	)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	sess := session.NewManager(nil)
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	cancel := bridge.Watch(sess)
	t.Cleanup(cancel)

	ctl := controller.New(client.New(ts.URL, sess), sess,
		controller.WithConfirmer(bridge),
		controller.WithNotifier(bridge),
	)
	h := &harness{t: t, srv: srv, sess: sess}
	h.m = New(Options{
		Controller: ctl,
		Bridge:     bridge,
		Theme:      "light",
		ExportDir:  t.TempDir(),
		OnTheme:    func(name string) { h.themes = append(h.themes, name) },
	})
	return h
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press sends keys and returns the command of the last one.
func (h *harness) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = h.m.Update(keyMsg(k))
		h.m = next.(Model)
	}
	return cmd
}

func (h *harness) send(msg tea.Msg) {
	next, _ := h.m.Update(msg)
	h.m = next.(Model)
}

// run executes an operation command and feeds its result back.
func (h *harness) run(cmd tea.Cmd) {
	h.t.Helper()
	require.NotNil(h.t, cmd)
	msg := cmd()
	_, ok := msg.(opDoneMsg)
	require.True(h.t, ok, "expected an operation result, got %T", msg)
	h.send(msg)
}

func (h *harness) login(user string) {
	h.t.Helper()
	h.press(user, "tab", "pw")
	h.run(h.press("enter"))
	require.Equal(h.t, screenList, h.m.screen)
}

func TestLoginShowsContacts(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})

	assert.Contains(t, h.m.View(), "Sign in")
	h.login("alice")

	view := h.m.View()
	assert.Contains(t, view, "Lovelace")
	assert.Contains(t, view, "1 of 1 contacts")
	assert.Contains(t, view, "alice (ROLE_USER)")
	assert.Contains(t, view, "n new")
	assert.NotContains(t, view, "Owner")
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)
	h.press("alice", "tab", "nope")
	h.run(h.press("enter"))

	assert.Equal(t, screenAuth, h.m.screen)
	assert.Contains(t, h.m.View(), "Invalid username or password.")
}

func TestLoginRequiresBothFields(t *testing.T) {
	h := newHarness(t)
	cmd := h.press("alice", "enter")
	assert.Nil(t, cmd)
	assert.Contains(t, h.m.View(), "Username and password are required.")
}

func TestRegisterReturnsToSignIn(t *testing.T) {
	h := newHarness(t)
	h.press("ctrl+r")
	assert.Contains(t, h.m.View(), "Create account")

	h.press("bob", "tab", "pw")
	h.run(h.press("enter"))
	assert.Equal(t, modeLogin, h.m.auth.mode)
	assert.Contains(t, h.m.View(), "Account created.")

	user, _ := h.m.auth.credentials()
	assert.Equal(t, "bob", user)
}

func TestAdminHidesCreateAndImport(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	h.login("root")

	view := h.m.View()
	assert.NotContains(t, view, "n new")
	assert.NotContains(t, view, "i import")
	assert.Contains(t, view, "Owner")

	h.press("n")
	assert.Equal(t, screenList, h.m.screen)
	h.press("i")
	assert.Equal(t, screenList, h.m.screen)
}

func TestFilterNarrowsList(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice",
		contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"},
		contacts.Fields{FirstName: "Alan", LastName: "Turing", Email: "alan@b.uk", Phone: "987654321"},
	)
	h.login("alice")

	h.press("/", "t", "u", "r")
	view := h.m.View()
	assert.Contains(t, view, "1 of 2 contacts")
	assert.NotContains(t, view, "Lovelace")

	h.press("esc")
	assert.False(t, h.m.filtering)
	assert.Equal(t, "tur", h.m.ctl.Store().Query())
}

func TestFormStaysOpenUntilSaved(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	h.press("n")
	require.Equal(t, screenForm, h.m.screen)
	assert.Contains(t, h.m.View(), "New contact")

	h.press("Grace", "tab", "Hopper", "tab", "grace@navy.mil", "tab", "12")
	h.run(h.press("ctrl+s"))
	assert.Equal(t, screenForm, h.m.screen)
	assert.Contains(t, h.m.View(), "phone must be exactly 9 digits")

	h.press("3456789")
	h.run(h.press("enter"))
	assert.Equal(t, screenList, h.m.screen)
	assert.Contains(t, h.m.View(), "Hopper")
	assert.Len(t, h.srv.Contacts("alice"), 1)
}

func TestEditUpdatesContact(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	h.login("alice")

	h.press("e")
	require.Equal(t, screenForm, h.m.screen)
	assert.Contains(t, h.m.View(), "Edit contact")

	h.m.form.fields.inputs[3].SetValue("111222333")
	h.run(h.press("ctrl+s"))
	assert.Equal(t, screenList, h.m.screen)
	assert.Equal(t, "111222333", h.srv.Contacts("alice")[0].Phone)
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice",
		contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"},
		contacts.Fields{FirstName: "Alan", LastName: "Turing", Email: "alan@b.uk", Phone: "987654321"},
	)
	h.login("alice")

	deleteWith := func(answer string) {
		cmd := h.press("d")
		require.NotNil(t, cmd)
		done := make(chan tea.Msg, 1)
		go func() { done <- cmd() }()

		h.send(h.m.bridge.waitForConfirm()())
		assert.Contains(t, h.m.View(), "Delete this contact?")
		h.press(answer)
		assert.Nil(t, h.m.confirm)
		h.send(<-done)
	}

	deleteWith("n")
	assert.Len(t, h.srv.Contacts("alice"), 2)

	deleteWith("y")
	assert.Len(t, h.srv.Contacts("alice"), 1)
	assert.Contains(t, h.m.View(), "1 of 1 contacts")
}

func TestDeleteFailureBlocks(t *testing.T) {
	h := newHarness(t)
	ids := h.srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	h.login("alice")
	h.srv.Fail(http.MethodDelete, "/api/contacts/"+ids[0].String(), http.StatusInternalServerError, "boom")

	cmd := h.press("d")
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	h.send(h.m.bridge.waitForConfirm()())
	h.press("y")
	h.send(<-done)

	require.NotNil(t, h.m.blocking)
	assert.Contains(t, h.m.View(), "press enter to continue")

	h.press("d")
	assert.NotNil(t, h.m.blocking)
	h.press("enter")
	assert.Nil(t, h.m.blocking)
}

func TestExpiredSessionReturnsToSignIn(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.srv.RevokeTokens()

	h.run(h.press("r"))
	for h.m.screen != screenAuth {
		msg := h.m.bridge.waitForSession()()
		h.send(msg)
	}
	assert.False(t, h.sess.Current().Valid())
	view := h.m.View()
	assert.Contains(t, view, "Sign in")
	assert.Contains(t, view, "Session expired")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	h.login("alice")

	h.press("L")
	assert.Equal(t, screenAuth, h.m.screen)
	assert.False(t, h.sess.Current().Valid())
	assert.Zero(t, h.m.ctl.Store().Len())
}

func TestExportWritesFile(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	h.run(h.press("x"))
	assert.Contains(t, h.m.View(), "No contacts to export.")

	h.srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	h.run(h.press("r"))
	h.run(h.press("X"))
	assert.Contains(t, h.m.View(), "Saved to")

	data, err := os.ReadFile(filepath.Join(h.m.opts.ExportDir, "contacts.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Lovelace")
	assert.NotContains(t, string(data), "<id>")
	assert.NotContains(t, string(data), "ownerUsername")
}

func TestImportWithoutFile(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	h.press("i")
	require.Equal(t, screenImport, h.m.screen)
	h.run(h.press("enter"))
	assert.Equal(t, screenImport, h.m.screen)
	assert.Contains(t, h.m.View(), "file type not recognized")
}

func TestImportFile(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	path := filepath.Join(t.TempDir(), "people.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":9,"firstName":"Grace","lastName":"Hopper","email":"g@navy.mil","phone":"123456789"}]`), 0o600))

	h.press("i")
	h.press(path)
	cmd := h.press("enter")
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	h.send(h.m.bridge.waitForConfirm()())
	assert.True(t, strings.Contains(h.m.View(), "replace all your current contacts"))
	h.press("y")
	h.send(<-done)

	assert.Equal(t, screenList, h.m.screen)
	assert.Contains(t, h.m.View(), "Hopper")
}

func TestThemeToggle(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	assert.False(t, h.m.styles.Theme.IsDark)
	h.press("t")
	assert.True(t, h.m.styles.Theme.IsDark)
	h.press("t")
	assert.Equal(t, []string{"dark", "light"}, h.themes)
}

func TestDetailView(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	h.login("alice")

	h.press("v")
	require.Equal(t, screenDetail, h.m.screen)
	assert.Equal(t, "Lovelace", h.m.detail.contact.LastName)
	h.press("esc")
	assert.Equal(t, screenList, h.m.screen)
}

func TestLoginOpensListWhenRoleLookupFails(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice", contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"})
	h.srv.Fail(http.MethodGet, "/auth/me", http.StatusInternalServerError, "boom")
	h.login("alice")

	view := h.m.View()
	assert.Contains(t, view, "Lovelace")
	assert.Contains(t, view, "Loading role failed: boom")
	assert.NotContains(t, view, "n new")
	h.press("n")
	assert.Equal(t, screenList, h.m.screen)

	h.srv.Heal()
	h.run(h.press("r"))
	assert.Equal(t, session.RoleUser, h.sess.Role())
	assert.Contains(t, h.m.View(), "n new")
}

func TestKeysStayLiveWhileRequestRuns(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("alice",
		contacts.Fields{FirstName: "Ada", LastName: "Lovelace", Email: "ada@math.org", Phone: "123456789"},
		contacts.Fields{FirstName: "Alan", LastName: "Turing", Email: "alan@b.uk", Phone: "987654321"},
	)
	h.login("alice")

	reload := h.press("r")
	require.NotNil(t, reload)
	assert.True(t, h.m.running(opLoad))
	assert.Contains(t, h.m.View(), "Working…")
	assert.Nil(t, h.press("r"), "a second reload waits for the first")

	h.press("j")
	assert.Equal(t, 1, h.m.cursor)

	h.press("/", "a", "d", "a")
	assert.True(t, h.m.filtering)
	assert.Contains(t, h.m.View(), "1 of 2 contacts")
	h.press("esc")

	h.press("v")
	require.Equal(t, screenDetail, h.m.screen)
	assert.Equal(t, "Lovelace", h.m.detail.contact.LastName)
	h.press("esc")

	h.press("t")
	assert.Equal(t, []string{"dark"}, h.themes)

	h.press("L")
	assert.Equal(t, screenList, h.m.screen)
	assert.True(t, h.sess.Current().Valid())

	h.run(reload)
	assert.False(t, h.m.busy())
	assert.Contains(t, h.m.View(), "2 of 2 contacts")
}
