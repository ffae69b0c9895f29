package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"contactdesk/internal/contacts"
)

// Table renders rows of cells with aligned columns.
type Table struct {
	Headers []string
	Rows    [][]string
	// Cursor highlights one row; -1 highlights none.
	Cursor int
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers, Cursor: -1}
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// View renders the table.
func (t *Table) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	header := styles.Bold.Padding(0, 1)
	var sb strings.Builder
	for i, h := range t.Headers {
		sb.WriteString(header.Width(widths[i]).Render(h))
	}
	sb.WriteString("\n")

	total := 0
	for _, w := range widths {
		total += w
	}
	sb.WriteString(styles.RenderDivider(total) + "\n")

	for r, row := range t.Rows {
		cell := styles.Body.Padding(0, 1)
		if r == t.Cursor {
			cell = styles.Selected.Padding(0, 1)
		}
		var line strings.Builder
		for i, c := range row {
			if i < len(widths) {
				line.WriteString(cell.Width(widths[i]).Render(c))
			}
		}
		sb.WriteString(line.String() + "\n")
	}
	return sb.String()
}

// ContactTable builds the list table. The owner column is added when
// showOwner is set.
func ContactTable(styles Styles, list []contacts.Contact, cursor int, showOwner bool) *Table {
	headers := []string{"", "Name", "Email", "Phone"}
	if showOwner {
		headers = append(headers, "Owner")
	}
	t := NewTable(headers...)
	t.Cursor = cursor
	for _, c := range list {
		row := []string{styles.Badge(c.Email, c.FirstName, c.LastName), c.FullName(), c.Email, c.Phone}
		if showOwner {
			row = append(row, c.OwnerUsername)
		}
		t.AddRow(row...)
	}
	return t
}
