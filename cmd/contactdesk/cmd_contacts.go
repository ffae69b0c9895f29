package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"contactdesk/cmd/contactdesk/ui"
	"contactdesk/internal/cache"
	"contactdesk/internal/contacts"
	"contactdesk/internal/controller"
)

var (
	listQuery   string
	listOffline bool

	fieldFirst string
	fieldLast  string
	fieldEmail string
	fieldPhone string

	assumeYes bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your contacts, sorted by last name",
	Long: `Lists contacts sorted by last name. --query keeps contacts whose
"first last email" contains the text, ignoring case. --offline reads the
snapshot saved by the last successful load instead of calling the service.`,
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one contact",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var addCmd = &cobra.Command{
	Use:     "add",
	Short:   "Create a contact",
	Example: `  contactdesk add --first Ada --last Lovelace --email ada@math.org --phone 123456789`,
	RunE:    runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Update a contact; unset flags keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a contact",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Filter by name or email")
	listCmd.Flags().BoolVar(&listOffline, "offline", false, "Read the offline snapshot")

	for _, c := range []*cobra.Command{addCmd, editCmd} {
		c.Flags().StringVar(&fieldFirst, "first", "", "First name")
		c.Flags().StringVar(&fieldLast, "last", "", "Last name")
		c.Flags().StringVar(&fieldEmail, "email", "", "Email address")
		c.Flags().StringVar(&fieldPhone, "phone", "", "Phone number (9 digits)")
	}
	deleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

func printContacts(list []contacts.Contact, total int, showOwner bool) {
	if len(list) == 0 {
		fmt.Println("No contacts.")
		return
	}
	styles := ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))
	t := ui.ContactTable(styles, list, -1, showOwner)
	t.Headers[0] = "ID"
	for i, c := range list {
		t.Rows[i][0] = c.ID.String()
	}
	fmt.Print(t.View(styles))
	fmt.Printf("%d of %d contacts\n", len(list), total)
}

func runList(cmd *cobra.Command, args []string) error {
	a := openApp(cliOptions(false)...)
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	showOwner := cfg.UI.ShowOwner || a.sess.Role().IsAdmin()

	if listOffline {
		if a.cache == nil {
			return fmt.Errorf("offline cache is disabled")
		}
		snap, err := a.cache.Load(ctx, a.sess.Current().Username)
		if errors.Is(err, cache.ErrNoSnapshot) {
			fmt.Println("No offline snapshot yet. Run 'contactdesk list' while online first.")
			return nil
		}
		if err != nil {
			return err
		}
		list := contacts.Sort(snap.Contacts)
		printContacts(contacts.Filter(list, listQuery), len(list), showOwner)
		fmt.Printf("(offline snapshot from %s)\n", snap.SavedAt.Local().Format(time.DateTime))
		return nil
	}

	if err := a.ctl.Load(ctx); err != nil {
		return fmt.Errorf("could not load contacts")
	}
	printContacts(a.ctl.Filter(listQuery), a.ctl.Store().Len(), showOwner)
	return nil
}

// loadOne loads the list and finds id in it.
func loadOne(a *app, id string) (contacts.Contact, error) {
	ctx, cancel := commandContext()
	defer cancel()
	if err := a.ctl.Load(ctx); err != nil {
		return contacts.Contact{}, fmt.Errorf("could not load contacts")
	}
	c, ok := a.ctl.Store().Find(contacts.ID(id))
	if !ok {
		return contacts.Contact{}, fmt.Errorf("contact %s not found", id)
	}
	return c, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a := openApp(cliOptions(false)...)
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}
	c, err := loadOne(a, args[0])
	if err != nil {
		return err
	}
	md := ui.ContactMarkdown(c, cfg.UI.ShowOwner || a.sess.Role().IsAdmin())
	fmt.Print(ui.RenderMarkdown(md, 80))
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	a := openApp(cliOptions(false)...)
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	f := contacts.Fields{FirstName: fieldFirst, LastName: fieldLast, Email: fieldEmail, Phone: fieldPhone}
	if err := a.ctl.Create(ctx, f); err != nil {
		return fmt.Errorf("contact not created: %w", err)
	}
	fmt.Printf("Created %s. %d contacts.\n", contacts.Contact{FirstName: f.FirstName, LastName: f.LastName}.FullName(), a.ctl.Store().Len())
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	a := openApp(cliOptions(false)...)
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}
	c, err := loadOne(a, args[0])
	if err != nil {
		return err
	}

	f := c.Fields()
	flags := cmd.Flags()
	if flags.Changed("first") {
		f.FirstName = fieldFirst
	}
	if flags.Changed("last") {
		f.LastName = fieldLast
	}
	if flags.Changed("email") {
		f.Email = fieldEmail
	}
	if flags.Changed("phone") {
		f.Phone = fieldPhone
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err := a.ctl.Update(ctx, c.ID, f); err != nil {
		return fmt.Errorf("contact not updated")
	}
	fmt.Printf("Updated contact %s.\n", c.ID)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a := openApp(cliOptions(assumeYes)...)
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	err := a.ctl.Delete(ctx, contacts.ID(args[0]))
	switch {
	case err == nil:
		fmt.Printf("Deleted contact %s.\n", args[0])
		return nil
	case errors.Is(err, controller.ErrCancelled):
		fmt.Println("Cancelled.")
		return nil
	}
	return fmt.Errorf("contact not deleted")
}
