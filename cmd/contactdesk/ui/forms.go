package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"contactdesk/internal/contacts"
)

// fieldSet is a column of labelled text inputs with one focused.
type fieldSet struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

func newFieldSet(labels ...string) fieldSet {
	fs := fieldSet{labels: labels, inputs: make([]textinput.Model, len(labels))}
	for i := range fs.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 256
		in.Width = 40
		fs.inputs[i] = in
	}
	fs.inputs[0].Focus()
	return fs
}

func (fs *fieldSet) move(delta int) tea.Cmd {
	fs.inputs[fs.focus].Blur()
	fs.focus = (fs.focus + delta + len(fs.inputs)) % len(fs.inputs)
	return fs.inputs[fs.focus].Focus()
}

func (fs *fieldSet) last() bool {
	return fs.focus == len(fs.inputs)-1
}

func (fs *fieldSet) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return fs.move(1)
	case "shift+tab", "up":
		return fs.move(-1)
	}
	var cmd tea.Cmd
	fs.inputs[fs.focus], cmd = fs.inputs[fs.focus].Update(msg)
	return cmd
}

func (fs *fieldSet) value(i int) string {
	return fs.inputs[i].Value()
}

func (fs *fieldSet) view(s Styles) string {
	var sb strings.Builder
	for i, in := range fs.inputs {
		label := s.Label.Render(fs.labels[i])
		if i == fs.focus {
			label = s.Focused.Width(12).Render(fs.labels[i])
		}
		sb.WriteString(label + " " + in.View() + "\n")
	}
	return sb.String()
}

// =============================================================================
// SIGN IN / REGISTER
// =============================================================================

type authMode int

const (
	modeLogin authMode = iota
	modeRegister
)

type authForm struct {
	mode   authMode
	fields fieldSet
}

func newAuthForm(mode authMode) authForm {
	fs := newFieldSet("Username", "Password")
	fs.inputs[1].EchoMode = textinput.EchoPassword
	fs.inputs[1].EchoCharacter = '•'
	return authForm{mode: mode, fields: fs}
}

func (f authForm) credentials() (string, string) {
	return strings.TrimSpace(f.fields.value(0)), f.fields.value(1)
}

func (f authForm) View(s Styles) string {
	title, hint := "Sign in", "enter sign in · ctrl+r create an account · ctrl+c quit"
	if f.mode == modeRegister {
		title, hint = "Create account", "enter register · esc back to sign in"
	}
	return s.Title.Render(title) + "\n" + f.fields.view(s) + "\n" + s.Muted.Render(hint)
}

// =============================================================================
// CONTACT FORM
// =============================================================================

// contactForm edits a draft (empty id) or an existing contact.
type contactForm struct {
	id     contacts.ID
	fields fieldSet
}

func newContactForm(c contacts.Contact) contactForm {
	fs := newFieldSet("First name", "Last name", "Email", "Phone")
	for i, v := range []string{c.FirstName, c.LastName, c.Email, c.Phone} {
		fs.inputs[i].SetValue(v)
	}
	return contactForm{id: c.ID, fields: fs}
}

func (f contactForm) values() contacts.Fields {
	return contacts.Fields{
		FirstName: strings.TrimSpace(f.fields.value(0)),
		LastName:  strings.TrimSpace(f.fields.value(1)),
		Email:     strings.TrimSpace(f.fields.value(2)),
		Phone:     strings.TrimSpace(f.fields.value(3)),
	}
}

func (f contactForm) View(s Styles) string {
	title := "Edit contact"
	if f.id.IsDraft() {
		title = "New contact"
	}
	return s.Title.Render(title) + "\n" + f.fields.view(s) + "\n" +
		s.Muted.Render("tab next field · ctrl+s save · esc cancel")
}

// =============================================================================
// IMPORT
// =============================================================================

type importForm struct {
	path textinput.Model
}

func newImportForm() importForm {
	in := textinput.New()
	in.Placeholder = "contacts.json or contacts.xml"
	in.Width = 50
	in.Focus()
	return importForm{path: in}
}

func (f importForm) View(s Styles) string {
	return s.Title.Render("Import contacts") + "\n" +
		s.Warning.Render("Importing replaces all of your current contacts.") + "\n\n" +
		s.Label.Render("File") + " " + f.path.View() + "\n\n" +
		s.Muted.Render("enter import · esc cancel")
}
