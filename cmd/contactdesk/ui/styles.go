// Package ui is the interactive contactdesk terminal front end.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"contactdesk/internal/avatar"
	"contactdesk/internal/controller"
)

var (
	// Light mode
	LightBackground = lipgloss.Color("#f4f5f6")
	LightForeground = lipgloss.Color("#1b2430")
	LightPrimary    = lipgloss.Color("#1f4e79")
	LightAccent     = lipgloss.Color("#2e86de")
	LightMuted      = lipgloss.Color("#8a94a3")
	LightBorder     = lipgloss.Color("#d5dae1")
	LightSelection  = lipgloss.Color("#dde9f7")

	// Dark mode
	DarkBackground = lipgloss.Color("#141b24")
	DarkForeground = lipgloss.Color("#eef1f4")
	DarkPrimary    = lipgloss.Color("#7fb3e8")
	DarkAccent     = lipgloss.Color("#4ea1f3")
	DarkMuted      = lipgloss.Color("#6b7686")
	DarkBorder     = lipgloss.Color("#2c3a4c")
	DarkSelection  = lipgloss.Color("#233246")

	// Semantic colors, same in both modes.
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#43a047")
	Warning     = lipgloss.Color("#ffb300")
	Info        = lipgloss.Color("#2196f3")
)

// Theme holds a color scheme.
type Theme struct {
	Name       string
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Selection  lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light scheme.
func LightTheme() Theme {
	return Theme{
		Name:       "light",
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		Selection:  LightSelection,
	}
}

// DarkTheme returns the dark scheme.
func DarkTheme() Theme {
	return Theme{
		Name:       "dark",
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Selection:  DarkSelection,
		IsDark:     true,
	}
}

// DetectTheme picks a theme from the terminal background (COLORFGBG),
// falling back to light.
func DetectTheme() Theme {
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		// 0-6 and 8 are dark backgrounds
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	return LightTheme()
}

// ThemeByName resolves "light", "dark" or "auto".
func ThemeByName(name string) Theme {
	switch name {
	case "dark":
		return DarkTheme()
	case "light":
		return LightTheme()
	default:
		return DetectTheme()
	}
}

// Styles holds the styled components.
type Styles struct {
	Theme Theme

	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	Label    lipgloss.Style
	Focused  lipgloss.Style
	Selected lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Dialog  lipgloss.Style
	Divider lipgloss.Style
	Key     lipgloss.Style
}

// NewStyles creates styles for theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),
		Content: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),
		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),
		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),
		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Label: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Width(12),
		Focused: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),
		Selected: lipgloss.NewStyle().
			Background(theme.Selection).
			Foreground(theme.Foreground),

		Success: lipgloss.NewStyle().Foreground(Success).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(Info),

		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Accent).
			Padding(1, 3),
		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),
		Key: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Toggle returns the opposite theme's styles.
func (s Styles) Toggle() Styles {
	if s.Theme.IsDark {
		return NewStyles(LightTheme())
	}
	return NewStyles(DarkTheme())
}

// RenderDivider returns a horizontal rule.
func (s Styles) RenderDivider(width int) string {
	if width <= 0 {
		width = 40
	}
	return s.Divider.Render(strings.Repeat("─", width))
}

// Badge renders the avatar initials on the contact's hue.
func (s Styles) Badge(email, firstName, lastName string) string {
	col := avatar.Color(avatar.Seed(email, firstName))
	return lipgloss.NewStyle().
		Background(lipgloss.Color(col.Hex())).
		Foreground(lipgloss.Color("#ffffff")).
		Bold(true).
		Width(4).
		Align(lipgloss.Center).
		Render(avatar.Initials(firstName, lastName))
}

// Notice renders a controller notice by kind.
func (s Styles) Notice(n controller.Notice) string {
	switch n.Kind {
	case controller.NoticeSuccess:
		return s.Success.Render("✓ " + n.Message)
	case controller.NoticeError, controller.NoticeBlocking:
		return s.Error.Render("✗ " + n.Message)
	default:
		return s.Info.Render(n.Message)
	}
}
