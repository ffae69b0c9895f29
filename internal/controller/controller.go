// Package controller runs contact operations against the service: it gates
// them by role, asks for confirmation before destructive calls, reloads the
// canonical list after every mutation and turns failures into notices.
package controller

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"contactdesk/internal/client"
	"contactdesk/internal/codec"
	"contactdesk/internal/contacts"
	"contactdesk/internal/logging"
	"contactdesk/internal/session"
)

// API is the subset of the transport the controller drives.
type API interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) error
	Me(ctx context.Context) (client.Identity, error)
	ListContacts(ctx context.Context) ([]contacts.Contact, error)
	CreateContact(ctx context.Context, f contacts.Fields) (contacts.Contact, error)
	UpdateContact(ctx context.Context, id contacts.ID, f contacts.Fields) (contacts.Contact, error)
	DeleteContact(ctx context.Context, id contacts.ID) error
	ExportJSON(ctx context.Context) ([]byte, error)
	ExportXML(ctx context.Context) ([]byte, error)
	ImportJSON(ctx context.Context, records []contacts.Fields) (string, error)
	ImportXML(ctx context.Context, payload []byte) (string, error)
}

// Snapshotter mirrors each applied list, e.g. into the offline cache.
type Snapshotter interface {
	Save(ctx context.Context, username string, list []contacts.Contact) error
}

var (
	ErrAdminCreate     = errors.New("administrators cannot create contacts")
	ErrAdminImport     = errors.New("administrators cannot import contacts")
	ErrDraftID         = errors.New("contact has no id")
	ErrCancelled       = errors.New("cancelled")
	ErrNothingToExport = errors.New("no contacts to export")
)

// Controller coordinates the store, session and transport.
type Controller struct {
	api     API
	sess    *session.Manager
	store   *contacts.Store
	confirm Confirmer
	notify  Notifier
	snap    Snapshotter
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfirmer sets the interactive confirmation. The default declines.
func WithConfirmer(c Confirmer) Option {
	return func(ctl *Controller) { ctl.confirm = c }
}

// WithNotifier sets where notices go. The default discards them.
func WithNotifier(n Notifier) Option {
	return func(ctl *Controller) { ctl.notify = n }
}

// WithSnapshotter mirrors every applied list.
func WithSnapshotter(s Snapshotter) Option {
	return func(ctl *Controller) { ctl.snap = s }
}

// WithStore shares an existing store.
func WithStore(s *contacts.Store) Option {
	return func(ctl *Controller) { ctl.store = s }
}

// New creates a controller.
func New(api API, sess *session.Manager, opts ...Option) *Controller {
	c := &Controller{
		api:     api,
		sess:    sess,
		store:   contacts.NewStore(),
		confirm: ConfirmFunc(func(string) bool { return false }),
		notify:  NotifyFunc(func(Notice) {}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the canonical list holder.
func (c *Controller) Store() *contacts.Store {
	return c.store
}

// Session returns the session manager.
func (c *Controller) Session() *session.Manager {
	return c.sess
}

// CanCreate reports whether the create affordance should be offered.
// It is false until the role is known.
func (c *Controller) CanCreate() bool {
	return c.sess.Role() == session.RoleUser
}

// CanImport reports whether the import affordance should be offered.
// It is false until the role is known.
func (c *Controller) CanImport() bool {
	return c.sess.Role() == session.RoleUser
}

// resolveRole asks /auth/me when the role is still unknown, so the admin
// re-check in create and import never runs against an empty role.
func (c *Controller) resolveRole(ctx context.Context, op string) error {
	if c.sess.Role() != "" {
		return nil
	}
	id, err := c.api.Me(ctx)
	if err != nil {
		return c.fail(op, NoticeError, err)
	}
	c.sess.SetRole(id.Role)
	return nil
}

// fail classifies err, reports it and returns it. An AuthError ends the session.
func (c *Controller) fail(op string, kind NoticeKind, err error) error {
	var ve *codec.ValidationError
	switch {
	case client.IsAuth(err):
		c.sess.Invalidate(fmt.Sprintf("%s: %v", op, err))
		c.notify.Notify(Notice{Kind: NoticeError, Message: "Session expired. Please sign in again."})
	case client.IsPermission(err):
		logging.Get(logging.CategoryStore).Warn("%s refused: %v", op, err)
		c.notify.Notify(Notice{Kind: NoticeError, Message: fmt.Sprintf("%s: permission denied (%s)", op, client.Detail(err))})
	case errors.As(err, &ve):
		c.notify.Notify(Notice{Kind: NoticeError, Message: fmt.Sprintf("%s: %s", op, ve.Message)})
	default:
		logging.Get(logging.CategoryStore).Error("%s failed: %v", op, err)
		c.notify.Notify(Notice{Kind: kind, Message: fmt.Sprintf("%s failed: %s", op, client.Detail(err))})
	}
	return err
}

// =============================================================================
// SESSION
// =============================================================================

// Login signs in and loads role and contacts. A failure after the token was
// issued is returned, but the session stays open.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	tok, err := c.api.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, client.ErrInvalidCredentials) {
			c.notify.Notify(Notice{Kind: NoticeError, Message: "Invalid username or password."})
			return err
		}
		return c.fail("Login", NoticeError, err)
	}
	if err := c.sess.Begin(username, tok); err != nil {
		logging.Get(logging.CategorySession).Warn("session not persisted: %v", err)
	}
	return c.Bootstrap(ctx)
}

// Register creates an account. It does not sign in.
func (c *Controller) Register(ctx context.Context, username, password string) error {
	if err := c.api.Register(ctx, username, password); err != nil {
		if errors.Is(err, client.ErrUserExists) {
			c.notify.Notify(Notice{Kind: NoticeError, Message: fmt.Sprintf("User %q already exists.", username)})
			return err
		}
		return c.fail("Registration", NoticeError, err)
	}
	c.notify.Notify(Notice{Kind: NoticeSuccess, Message: "Account created. You can sign in now."})
	return nil
}

// Logout clears the session and the in-memory list.
func (c *Controller) Logout() error {
	c.store.Apply(c.store.Begin(), nil)
	return c.sess.Logout()
}

// Bootstrap resolves the role and loads contacts concurrently.
func (c *Controller) Bootstrap(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.LoadRole(ctx) })
	g.Go(func() error { return c.Load(ctx) })
	return g.Wait()
}

// LoadRole asks the service for the caller's role.
func (c *Controller) LoadRole(ctx context.Context) error {
	id, err := c.api.Me(ctx)
	if err != nil {
		return c.fail("Loading role", NoticeError, err)
	}
	c.sess.SetRole(id.Role)
	return nil
}

// Refresh reloads the contacts, resolving the role too if an earlier
// lookup failed.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.sess.Role() == "" {
		return c.Bootstrap(ctx)
	}
	return c.Load(ctx)
}

// =============================================================================
// LIST
// =============================================================================

// Load fetches the caller's contacts and installs them as the canonical list.
func (c *Controller) Load(ctx context.Context) error {
	gen := c.store.Begin()
	timer := logging.StartTimer(logging.CategoryStore, "load contacts")
	list, err := c.api.ListContacts(ctx)
	timer.Stop()
	if err != nil {
		return c.fail("Loading contacts", NoticeError, err)
	}
	if !c.store.Apply(gen, list) {
		return nil
	}
	if c.snap != nil {
		if err := c.snap.Save(ctx, c.sess.Current().Username, c.store.Canonical()); err != nil {
			logging.CacheError("snapshot not saved: %v", err)
		}
	}
	return nil
}

// Filter narrows the visible list. No request is made.
func (c *Controller) Filter(query string) []contacts.Contact {
	return c.store.Filter(query)
}

// reload refreshes after a successful mutation. A failed reload is reported
// on its own and does not fail the mutation.
func (c *Controller) reload(ctx context.Context) {
	_ = c.Load(ctx)
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Save creates f when id is a draft and updates contact id otherwise.
func (c *Controller) Save(ctx context.Context, id contacts.ID, f contacts.Fields) error {
	if id.IsDraft() {
		return c.Create(ctx, f)
	}
	return c.Update(ctx, id, f)
}

// Create adds a contact. Administrators are refused without a request.
func (c *Controller) Create(ctx context.Context, f contacts.Fields) error {
	if err := c.resolveRole(ctx, "Saving contact"); err != nil {
		return err
	}
	if c.sess.Role().IsAdmin() {
		logging.StoreWarn("create refused for administrator %s", c.sess.Current().Username)
		return ErrAdminCreate
	}
	if _, err := c.api.CreateContact(ctx, f); err != nil {
		return c.fail("Saving contact", NoticeError, err)
	}
	c.reload(ctx)
	return nil
}

// Update replaces the fields of contact id.
func (c *Controller) Update(ctx context.Context, id contacts.ID, f contacts.Fields) error {
	if id.IsDraft() {
		return ErrDraftID
	}
	if _, err := c.api.UpdateContact(ctx, id, f); err != nil {
		return c.fail("Saving contact", NoticeError, err)
	}
	c.reload(ctx)
	return nil
}

// Delete removes contact id after confirmation.
func (c *Controller) Delete(ctx context.Context, id contacts.ID) error {
	if id.IsDraft() {
		return ErrDraftID
	}
	if !c.confirm.Confirm("Delete this contact?") {
		return ErrCancelled
	}
	if err := c.api.DeleteContact(ctx, id); err != nil {
		return c.fail("Deleting contact", NoticeBlocking, err)
	}
	c.reload(ctx)
	return nil
}
