package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"contactdesk/internal/avatar"
	"contactdesk/internal/contacts"
)

// ContactMarkdown renders a contact card as markdown.
func ContactMarkdown(c contacts.Contact, showOwner bool) string {
	var sb strings.Builder
	name := c.FullName()
	if name == "" {
		name = "(no name)"
	}
	fmt.Fprintf(&sb, "# %s\n\n", name)
	fmt.Fprintf(&sb, "| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| **Email** | %s |\n", orDash(c.Email))
	fmt.Fprintf(&sb, "| **Phone** | %s |\n", orDash(c.Phone))
	if showOwner {
		fmt.Fprintf(&sb, "| **Owner** | %s |\n", orDash(c.OwnerUsername))
	}
	fmt.Fprintf(&sb, "| **Avatar** | %s `%s` |\n", orDash(avatar.Initials(c.FirstName, c.LastName)), avatar.Color(avatar.Seed(c.Email, c.FirstName)))
	return sb.String()
}

// RenderMarkdown renders md for a terminal of the given width. On renderer
// failure the markdown is returned unchanged.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type detailPage struct {
	contact  contacts.Contact
	viewport viewport.Model
}

func newDetailPage(c contacts.Contact, showOwner bool, width, height int) detailPage {
	vp := viewport.New(max(width-4, 20), max(height-6, 5))
	vp.SetContent(RenderMarkdown(ContactMarkdown(c, showOwner), vp.Width))
	return detailPage{contact: c, viewport: vp}
}
