package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"contactdesk/internal/codec"
	"contactdesk/internal/contacts"
	"contactdesk/internal/controller"
	"contactdesk/internal/logging"
	"contactdesk/internal/session"
)

type screen int

const (
	screenAuth screen = iota
	screenList
	screenForm
	screenImport
	screenDetail
)

type op int

const (
	opLogin op = iota
	opRegister
	opLoad
	opSave
	opDelete
	opImport
	opExport
)

// opDoneMsg reports a finished controller operation.
type opDoneMsg struct {
	op   op
	err  error
	path string
}

// Options configures the interactive model.
type Options struct {
	Controller *controller.Controller
	Bridge     *Bridge
	// Theme is "light", "dark" or "auto".
	Theme string
	// OnTheme persists a toggled theme name.
	OnTheme func(name string)
	// ShowOwner shows the owner column for non-admin sessions too.
	ShowOwner bool
	// ExportDir receives exported files.
	ExportDir string
	Context   context.Context
}

// Model is the root bubbletea model.
type Model struct {
	opts   Options
	ctl    *controller.Controller
	bridge *Bridge
	ctx    context.Context
	styles Styles

	screen    screen
	auth      authForm
	filter    textinput.Model
	filtering bool
	cursor    int
	form      contactForm
	importer  importForm
	detail    detailPage

	confirm  *confirmMsg
	notice   *controller.Notice
	blocking *controller.Notice
	// inflight has bit 1<<op set while that operation runs.
	inflight uint

	width  int
	height int
}

// New creates the model. A restored session starts on the contact list.
func New(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	filter := textinput.New()
	filter.Placeholder = "name or email"
	filter.Prompt = "/ "

	m := Model{
		opts:   opts,
		ctl:    opts.Controller,
		bridge: opts.Bridge,
		ctx:    opts.Context,
		styles: NewStyles(ThemeByName(opts.Theme)),
		auth:   newAuthForm(modeLogin),
		filter: filter,
		width:  80,
		height: 24,
	}
	if m.ctl.Session().Current().Valid() {
		m.screen = screenList
		m.begin(opLoad)
	}
	return m
}

// begin marks o as running. It reports false when o is already running,
// so repeated keys do not stack duplicate requests.
func (m *Model) begin(o op) bool {
	if m.running(o) {
		return false
	}
	m.inflight |= 1 << o
	return true
}

func (m Model) running(o op) bool {
	return m.inflight&(1<<o) != 0
}

func (m Model) busy() bool {
	return m.inflight != 0
}

// Init starts the bridge listeners and, with a restored session, the first load.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.waitForConfirm(), m.bridge.waitForSession()}
	if m.screen == screenList {
		cmds = append(cmds, m.exec(opLoad, m.ctl.Bootstrap))
	}
	return tea.Batch(cmds...)
}

func (m Model) exec(o op, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: o, err: fn(ctx)}
	}
}

func (m Model) export(format codec.Format) tea.Cmd {
	ctx, ctl, dir, bridge := m.ctx, m.ctl, m.opts.ExportDir, m.bridge
	return func() tea.Msg {
		art, err := ctl.Export(ctx, format)
		if err != nil {
			return opDoneMsg{op: opExport, err: err}
		}
		path, err := art.Save(dir)
		if err != nil {
			bridge.Notify(controller.Notice{Kind: controller.NoticeError, Message: err.Error()})
			return opDoneMsg{op: opExport, err: err}
		}
		return opDoneMsg{op: opExport, path: path}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.screen == screenDetail {
			m.detail = newDetailPage(m.detail.contact, m.showOwner(), m.width, m.height)
		}
		return m, nil

	case confirmMsg:
		m.confirm = &msg
		return m, nil

	case sessionMsg:
		if msg.State == session.StateInvalidated || msg.State == session.StateLoggedOut {
			m.signedOut()
		}
		return m, m.bridge.waitForSession()

	case opDoneMsg:
		return m.finish(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) signedOut() {
	m.ctl.Store().Apply(m.ctl.Store().Begin(), nil)
	m.screen = screenAuth
	m.auth = newAuthForm(modeLogin)
	m.filter.SetValue("")
	m.filtering = false
	m.cursor = 0
}

func (m Model) finish(msg opDoneMsg) Model {
	m.inflight &^= 1 << msg.op
	logging.UIDebug("operation %d finished: err=%v", msg.op, msg.err)
	for _, n := range m.bridge.Drain() {
		if n.Kind == controller.NoticeBlocking {
			m.blocking = &n
		} else {
			m.notice = &n
		}
	}

	// A login whose role or list lookup failed still opens the session.
	if msg.op == opLogin && m.screen == screenAuth && m.ctl.Session().Current().Valid() {
		m.screen = screenList
		m.cursor = 0
	}
	if msg.err == nil {
		switch msg.op {
		case opRegister:
			if m.screen == screenAuth && m.auth.mode == modeRegister {
				user, _ := m.auth.credentials()
				m.auth = newAuthForm(modeLogin)
				m.auth.fields.inputs[0].SetValue(user)
			}
		case opSave:
			if m.screen == screenForm {
				m.screen = screenList
			}
		case opImport:
			if m.screen == screenImport {
				m.screen = screenList
			}
		case opExport:
			m.notice = &controller.Notice{
				Kind:    controller.NoticeSuccess,
				Message: fmt.Sprintf("%s Saved to %s", noticeText(m.notice), msg.path),
			}
		}
	}
	if msg.op == opLoad || msg.op == opSave || msg.op == opDelete || msg.op == opImport {
		// Apply resets the filter.
		m.filter.SetValue(m.ctl.Store().Query())
	}
	m.clampCursor()
	return m
}

func noticeText(n *controller.Notice) string {
	if n == nil {
		return ""
	}
	return n.Message
}

func (m *Model) clampCursor() {
	n := len(m.ctl.Store().Visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (contacts.Contact, bool) {
	visible := m.ctl.Store().Visible()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return contacts.Contact{}, false
	}
	return visible[m.cursor], true
}

func (m Model) showOwner() bool {
	return m.opts.ShowOwner || m.ctl.Session().Role().IsAdmin()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.bridge.Close()
		return m, tea.Quit
	}

	if m.blocking != nil {
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
			m.blocking = nil
		}
		return m, nil
	}

	if m.confirm != nil {
		var answer, answered bool
		switch msg.String() {
		case "y", "Y", "enter":
			answer, answered = true, true
		case "n", "N", "esc":
			answered = true
		}
		if !answered {
			return m, nil
		}
		m.confirm.reply <- answer
		m.confirm = nil
		return m, m.bridge.waitForConfirm()
	}

	m.notice = nil

	switch m.screen {
	case screenAuth:
		return m.authKey(msg)
	case screenForm:
		return m.formKey(msg)
	case screenImport:
		return m.importKey(msg)
	case screenDetail:
		return m.detailKey(msg)
	}
	return m.listKey(msg)
}

func (m Model) authKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		user, pass := m.auth.credentials()
		if user == "" || pass == "" {
			m.notice = &controller.Notice{Kind: controller.NoticeError, Message: "Username and password are required."}
			return m, nil
		}
		if m.auth.mode == modeRegister {
			if !m.begin(opRegister) {
				return m, nil
			}
			return m, m.exec(opRegister, func(ctx context.Context) error { return m.ctl.Register(ctx, user, pass) })
		}
		if !m.begin(opLogin) {
			return m, nil
		}
		return m, m.exec(opLogin, func(ctx context.Context) error { return m.ctl.Login(ctx, user, pass) })
	case "ctrl+r":
		if m.auth.mode == modeLogin {
			m.auth = newAuthForm(modeRegister)
		}
		return m, nil
	case "esc":
		if m.auth.mode == modeRegister {
			m.auth = newAuthForm(modeLogin)
		}
		return m, nil
	}
	return m, m.auth.fields.update(msg)
}

func (m Model) listKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			m.filtering = false
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.ctl.Filter(m.filter.Value())
		m.clampCursor()
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.bridge.Close()
		return m, tea.Quit
	case "/":
		m.filtering = true
		return m, m.filter.Focus()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.ctl.Store().Visible())-1 {
			m.cursor++
		}
	case "n":
		if m.ctl.CanCreate() {
			m.form = newContactForm(contacts.Contact{})
			m.screen = screenForm
		}
	case "e", "enter":
		if c, ok := m.selected(); ok {
			m.form = newContactForm(c)
			m.screen = screenForm
		}
	case "v":
		if c, ok := m.selected(); ok {
			m.detail = newDetailPage(c, m.showOwner(), m.width, m.height)
			m.screen = screenDetail
		}
	case "d":
		if c, ok := m.selected(); ok && m.begin(opDelete) {
			return m, m.exec(opDelete, func(ctx context.Context) error { return m.ctl.Delete(ctx, c.ID) })
		}
	case "i":
		if m.ctl.CanImport() {
			m.importer = newImportForm()
			m.screen = screenImport
		}
	case "x":
		if m.begin(opExport) {
			return m, m.export(codec.FormatJSON)
		}
	case "X":
		if m.begin(opExport) {
			return m, m.export(codec.FormatXML)
		}
	case "r":
		if m.begin(opLoad) {
			return m, m.exec(opLoad, m.ctl.Refresh)
		}
	case "t":
		m.styles = m.styles.Toggle()
		if m.opts.OnTheme != nil {
			m.opts.OnTheme(m.styles.Theme.Name)
		}
	case "L":
		if m.busy() {
			m.notice = &controller.Notice{Kind: controller.NoticeInfo, Message: "Wait for the running request before signing out."}
			return m, nil
		}
		if err := m.ctl.Logout(); err != nil {
			logging.Get(logging.CategoryUI).Warn("logout: %v", err)
		}
		m.signedOut()
	}
	return m, nil
}

func (m Model) formKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenList
		return m, nil
	case "ctrl+s":
		return m.save()
	case "enter":
		if m.form.fields.last() {
			return m.save()
		}
		return m, m.form.fields.move(1)
	}
	return m, m.form.fields.update(msg)
}

// save submits the form. The form stays open until the save succeeds.
func (m Model) save() (tea.Model, tea.Cmd) {
	id, fields := m.form.id, m.form.values()
	if id.IsDraft() && !m.ctl.CanCreate() {
		m.screen = screenList
		return m, nil
	}
	if !m.begin(opSave) {
		return m, nil
	}
	return m, m.exec(opSave, func(ctx context.Context) error { return m.ctl.Save(ctx, id, fields) })
}

func (m Model) importKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.screen = screenList
		return m, nil
	case tea.KeyEnter:
		var up codec.Upload
		if path := strings.TrimSpace(m.importer.path.Value()); path != "" {
			var err error
			if up, err = codec.ReadUpload(path); err != nil {
				m.notice = &controller.Notice{Kind: controller.NoticeError, Message: err.Error()}
				return m, nil
			}
		}
		if !m.begin(opImport) {
			return m, nil
		}
		return m, m.exec(opImport, func(ctx context.Context) error { return m.ctl.ImportDetected(ctx, up) })
	}
	var cmd tea.Cmd
	m.importer.path, cmd = m.importer.path.Update(msg)
	return m, cmd
}

func (m Model) detailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "v":
		m.screen = screenList
		return m, nil
	case "e":
		m.form = newContactForm(m.detail.contact)
		m.screen = screenForm
		return m, nil
	}
	var cmd tea.Cmd
	m.detail.viewport, cmd = m.detail.viewport.Update(msg)
	return m, cmd
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the current screen.
func (m Model) View() string {
	var body string
	switch {
	case m.blocking != nil:
		body = m.styles.Dialog.Render(m.styles.Notice(*m.blocking) + "\n\n" + m.styles.Muted.Render("press enter to continue"))
	case m.confirm != nil:
		body = m.styles.Dialog.Render(m.styles.Bold.Render(m.confirm.prompt) + "\n\n" +
			m.styles.Key.Render("[y]") + " yes   " + m.styles.Key.Render("[n]") + " no")
	default:
		switch m.screen {
		case screenAuth:
			body = m.auth.View(m.styles)
		case screenForm:
			body = m.form.View(m.styles)
		case screenImport:
			body = m.importer.View(m.styles)
		case screenDetail:
			body = m.detail.viewport.View() + "\n" + m.styles.Muted.Render("e edit · esc back")
		default:
			body = m.listView()
		}
	}

	parts := []string{m.header(), m.styles.Content.Render(body)}
	switch {
	case m.busy():
		parts = append(parts, m.styles.Footer.Render("Working…"))
	case m.notice != nil:
		parts = append(parts, m.styles.Footer.Render(m.styles.Notice(*m.notice)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) header() string {
	title := "contactdesk"
	if s := m.ctl.Session().Current(); s.Valid() {
		role := string(s.Role)
		if role == "" {
			role = "…"
		}
		title = fmt.Sprintf("contactdesk · %s (%s)", s.Username, role)
	}
	return m.styles.Header.Render(title)
}

func (m Model) listView() string {
	store := m.ctl.Store()
	visible := store.Visible()

	var sb strings.Builder
	sb.WriteString(m.filter.View() + "\n")
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d of %d contacts", len(visible), store.Len())) + "\n\n")
	if len(visible) == 0 {
		sb.WriteString(m.styles.Subtitle.Render("No contacts.") + "\n")
	} else {
		sb.WriteString(ContactTable(m.styles, visible, m.cursor, m.showOwner()).View(m.styles))
	}
	sb.WriteString("\n" + m.help())
	return sb.String()
}

func (m Model) help() string {
	keys := []string{"/ filter", "e edit", "v view", "d delete"}
	if m.ctl.CanCreate() {
		keys = append(keys, "n new")
	}
	if m.ctl.CanImport() {
		keys = append(keys, "i import")
	}
	keys = append(keys, "x/X export json/xml", "r reload", "t theme", "L sign out", "q quit")
	return m.styles.Muted.Render(strings.Join(keys, " · "))
}
