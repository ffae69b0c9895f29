package config

// UIConfig holds interactive surface configuration.
type UIConfig struct {
	// Theme is "auto", "light" or "dark". Auto follows the terminal background.
	Theme string `yaml:"theme"`

	// ShowOwner forces the owner column on for non-admin sessions too.
	ShowOwner bool `yaml:"show_owner,omitempty"`
}

// ValidThemes lists the accepted theme names.
var ValidThemes = []string{"auto", "light", "dark"}

// DefaultUIConfig returns sensible UI defaults.
func DefaultUIConfig() *UIConfig {
	return &UIConfig{Theme: "auto"}
}

func isValidTheme(theme string) bool {
	for _, t := range ValidThemes {
		if t == theme {
			return true
		}
	}
	return false
}
